package invoicing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/domain/shared"
)

// LineItemInput is one billed line as entered by the operator
type LineItemInput struct {
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount" validate:"gte=0"`
}

// IssueInvoiceInput is the raw input of an issuance run
type IssueInvoiceInput struct {
	Date             time.Time       `json:"date" validate:"required"`
	RecipientName    string          `json:"recipient_name" validate:"required"`
	RecipientAddress string          `json:"recipient_address"`
	RecipientTaxID   string          `json:"recipient_tax_id"`
	RecipientEmail   string          `json:"recipient_email" validate:"omitempty,email"`
	Items            []LineItemInput `json:"items" validate:"dive"`
}

// ValidationDetail describes one invalid field
type ValidationDetail struct {
	Field   string
	Message string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report JSON field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the input fields and returns one detail per invalid field
func (in IssueInvoiceInput) Validate() []ValidationDetail {
	err := inputValidator().Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationDetail{{Message: err.Error()}}
	}

	details := make([]ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, ValidationDetail{
			Field:   strings.TrimPrefix(e.Namespace(), "IssueInvoiceInput."),
			Message: validationMessage(e),
		})
	}
	return details
}

// ToRequest validates the input and builds the domain request. The total
// is the exact decimal sum of the item amounts.
func (in IssueInvoiceInput) ToRequest() (domain.InvoiceRequest, error) {
	if details := in.Validate(); len(details) > 0 {
		parts := make([]string, 0, len(details))
		for _, d := range details {
			parts = append(parts, fmt.Sprintf("%s: %s", d.Field, d.Message))
		}
		return domain.InvoiceRequest{}, shared.NewDomainError(shared.ErrInvalidInput.Code, strings.Join(parts, "; "))
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		item, err := domain.NewLineItemFromFloat(it.Description, it.Amount)
		if err != nil {
			return domain.InvoiceRequest{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		items = append(items, item)
	}

	return domain.NewInvoiceRequest(domain.RequestParams{
		Date:             in.Date,
		RecipientName:    in.RecipientName,
		RecipientAddress: in.RecipientAddress,
		RecipientTaxID:   in.RecipientTaxID,
		RecipientEmail:   in.RecipientEmail,
		Items:            items,
		Total:            domain.SumAmounts(items),
	})
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "gte":
		return "must be at least " + e.Param()
	default:
		return "invalid value"
	}
}
