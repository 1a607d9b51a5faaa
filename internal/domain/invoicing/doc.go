// Package invoicing contains the Invoicing bounded context.
// It owns the invoice data model, sequential number allocation, artifact
// naming, locale-dependent formatting and the ports through which the
// issuance pipeline reaches the ledger, storage, mail and locking backends.
package invoicing
