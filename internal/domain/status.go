package domain

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Validation errors returned by the Parse* functions.
var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPurpose    = errors.New("invalid purpose")
	ErrInvalidDealType   = errors.New("invalid deal type")
	ErrInvalidRecurrence = errors.New("invalid recurrence interval")
)

// PropertyStatus is the lifecycle state of a listing.
type PropertyStatus string

const (
	StatusPendingApproval PropertyStatus = "pending_approval"
	StatusApproved        PropertyStatus = "approved"
	StatusRejected        PropertyStatus = "rejected"
	StatusRented          PropertyStatus = "rented"
	StatusSold            PropertyStatus = "sold"
)

// Closed reports whether the status is a closed deal (sold or rented).
func (s PropertyStatus) Closed() bool {
	return s == StatusSold || s == StatusRented
}

// Valid reports whether s is one of the canonical statuses.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected, StatusRented, StatusSold:
		return true
	}
	return false
}

// DealType is the kind of a closed deal.
type DealType string

const (
	DealSale DealType = "sale"
	DealRent DealType = "rent"
)

// ClosedStatus maps a deal type to the status the property ends up in.
func (d DealType) ClosedStatus() PropertyStatus {
	if d == DealRent {
		return StatusRented
	}
	return StatusSold
}

// Purpose is what a listing is offered for.
type Purpose string

const (
	PurposeSale     Purpose = "Venda"
	PurposeRent     Purpose = "Aluguel"
	PurposeSaleRent Purpose = "Venda e Aluguel"
)

// Allows reports whether a deal of type d may be closed on a listing with
// this purpose.
func (p Purpose) Allows(d DealType) bool {
	switch d {
	case DealSale:
		return p == PurposeSale || p == PurposeSaleRent
	case DealRent:
		return p == PurposeRent || p == PurposeSaleRent
	}
	return false
}

// RecurrenceInterval is the billing period of a recurring commission.
type RecurrenceInterval string

const (
	RecurrenceNone    RecurrenceInterval = "none"
	RecurrenceWeekly  RecurrenceInterval = "weekly"
	RecurrenceMonthly RecurrenceInterval = "monthly"
	RecurrenceYearly  RecurrenceInterval = "yearly"
)

// Synonym tables are keyed by folded input (see Fold).
var statusSynonyms = map[string]PropertyStatus{
	"pendingapproval":     StatusPendingApproval,
	"pending":             StatusPendingApproval,
	"pendente":            StatusPendingApproval,
	"pendenteaprovacao":   StatusPendingApproval,
	"aguardandoaprovacao": StatusPendingApproval,
	"emanalise":           StatusPendingApproval,
	"approved":            StatusApproved,
	"aprovado":            StatusApproved,
	"aprovada":            StatusApproved,
	"rejected":            StatusRejected,
	"rejeitado":           StatusRejected,
	"rejeitada":           StatusRejected,
	"reprovado":           StatusRejected,
	"rented":              StatusRented,
	"alugado":             StatusRented,
	"alugada":             StatusRented,
	"sold":                StatusSold,
	"vendido":             StatusSold,
	"vendida":             StatusSold,
}

var purposeSynonyms = map[string]Purpose{
	"venda":          PurposeSale,
	"sale":           PurposeSale,
	"sell":           PurposeSale,
	"aluguel":        PurposeRent,
	"locacao":        PurposeRent,
	"rent":           PurposeRent,
	"rental":         PurposeRent,
	"vendaealuguel":  PurposeSaleRent,
	"vendaaluguel":   PurposeSaleRent,
	"vendaoualuguel": PurposeSaleRent,
	"ambos":          PurposeSaleRent,
	"saleandrent":    PurposeSaleRent,
	"salerent":       PurposeSaleRent,
	"both":           PurposeSaleRent,
}

var dealTypeSynonyms = map[string]DealType{
	"sale":    DealSale,
	"sold":    DealSale,
	"venda":   DealSale,
	"vendido": DealSale,
	"vendida": DealSale,
	"rent":    DealRent,
	"rented":  DealRent,
	"rental":  DealRent,
	"aluguel": DealRent,
	"alugado": DealRent,
	"alugada": DealRent,
	"locacao": DealRent,
}

var recurrenceSynonyms = map[string]RecurrenceInterval{
	"none":    RecurrenceNone,
	"nenhum":  RecurrenceNone,
	"nenhuma": RecurrenceNone,
	"weekly":  RecurrenceWeekly,
	"semanal": RecurrenceWeekly,
	"monthly": RecurrenceMonthly,
	"mensal":  RecurrenceMonthly,
	"yearly":  RecurrenceYearly,
	"annual":  RecurrenceYearly,
	"anual":   RecurrenceYearly,
}

// Fold lower-cases s, removes diacritics (NFD + strip combining marks) and
// drops every rune that is not a letter or digit.
// "Venda e Aluguel" folds to "vendaealuguel", "Locação" to "locacao".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ParseStatus maps free-form, localized input to a canonical status.
func ParseStatus(raw string) (PropertyStatus, error) {
	if s, ok := statusSynonyms[Fold(raw)]; ok && s.Valid() {
		return s, nil
	}
	return "", ErrInvalidStatus
}

// ParsePurpose maps free-form, localized input to a canonical purpose.
func ParsePurpose(raw string) (Purpose, error) {
	if p, ok := purposeSynonyms[Fold(raw)]; ok {
		return p, nil
	}
	return "", ErrInvalidPurpose
}

// ParseDealType maps free-form, localized input to a canonical deal type.
func ParseDealType(raw string) (DealType, error) {
	if d, ok := dealTypeSynonyms[Fold(raw)]; ok {
		return d, nil
	}
	return "", ErrInvalidDealType
}

// ParseRecurrence maps input to a recurrence interval. Blank input is
// RecurrenceNone; anything else unknown is ErrInvalidRecurrence.
func ParseRecurrence(raw string) (RecurrenceInterval, error) {
	if strings.TrimSpace(raw) == "" {
		return RecurrenceNone, nil
	}
	if r, ok := recurrenceSynonyms[Fold(raw)]; ok {
		return r, nil
	}
	return "", ErrInvalidRecurrence
}
