// Package printing renders invoices to PDF and keeps the rendered
// artifacts on local disk.
//
// This package contains:
// - BuildLayout, which turns an invoice into an ordered list of blocks
// - PDFRenderer, drawing a layout with gofpdf and the core PDF fonts
// - ChromedpRenderer, printing the layout's HTML form with headless Chrome
// - FileSystemStorage, an atomic local artifact store
//
// Example usage:
//
//	renderer := NewPDFRenderer(&PDFConfig{Logger: logger})
//	data, err := renderer.Render(ctx, invoice, renderConfig, profile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, _ := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: "out"})
//	path, err := store.Write(ctx, invoice.Filename(), data)
package printing
