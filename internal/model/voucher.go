package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType is the document type of a voucher.
type VoucherType int

const (
	VoucherSalesInvoice    VoucherType = 1
	VoucherPurchaseInvoice VoucherType = 2
	VoucherIncome          VoucherType = 3
	VoucherExpense         VoucherType = 4
	VoucherPayment         VoucherType = 5 // also used for transfers
	VoucherBankStatement   VoucherType = 6
	VoucherMemo            VoucherType = 7
	VoucherAttachmentOnly  VoucherType = 8
	VoucherVAT             VoucherType = 9
	VoucherJournal         VoucherType = 10 // also the opening-balance voucher
)

var voucherTypeNames = map[VoucherType]string{
	VoucherSalesInvoice:    "Sales invoice",
	VoucherPurchaseInvoice: "Purchase invoice",
	VoucherIncome:          "Income",
	VoucherExpense:         "Expense",
	VoucherPayment:         "Payment",
	VoucherBankStatement:   "Bank statement",
	VoucherMemo:            "Memo",
	VoucherAttachmentOnly:  "Attachment only",
	VoucherVAT:             "VAT",
	VoucherJournal:         "Journal entry",
}

func (t VoucherType) Valid() bool {
	_, ok := voucherTypeNames[t]
	return ok
}

func (t VoucherType) String() string {
	if n, ok := voucherTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// Status is the lifecycle state stored on a voucher.
type Status int

const (
	StatusDraft    Status = 0
	StatusReady    Status = 100
	StatusPosted   Status = 200
	StatusArchived Status = 300
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusReady:
		return "Ready"
	case StatusPosted:
		return "Posted"
	case StatusArchived:
		return "Archived"
	}
	return "Unknown"
}

// InvoiceStatus is the status of a sales invoice. It shares the status
// column with Status; only vouchers of type 1 interpret it this way.
type InvoiceStatus int

const (
	InvoiceDraft         InvoiceStatus = 0
	InvoiceOpen          InvoiceStatus = 1
	InvoiceOverdue       InvoiceStatus = 2
	InvoicePartiallyPaid InvoiceStatus = 3
	InvoicePaid          InvoiceStatus = 4
	InvoiceCredited      InvoiceStatus = 5
	InvoiceVoided        InvoiceStatus = 6
)

var invoiceStatusNames = [...]string{"Draft", "Open", "Overdue", "Partially paid", "Paid", "Credited", "Voided"}

func (s InvoiceStatus) Valid() bool {
	return s >= InvoiceDraft && s <= InvoiceVoided
}

func (s InvoiceStatus) String() string {
	if s.Valid() {
		return invoiceStatusNames[s]
	}
	return "Unknown"
}

// PaymentMethod is how an invoice is expected to be paid.
type PaymentMethod int

const (
	PaymentBankTransfer PaymentMethod = 1
	PaymentCash         PaymentMethod = 2
	PaymentCard         PaymentMethod = 3
	PaymentDirectDebit  PaymentMethod = 4
	PaymentEInvoice     PaymentMethod = 5
)

// Voucher is one accounting document.
type Voucher struct {
	ID          int64
	Date        time.Time
	Type        VoucherType
	Status      Status
	Number      int64 // invoice number, 0 when unset
	Series      string
	Title       string
	PartnerID   *int64
	InvoiceDate *time.Time
	DueDate     *time.Time
	Reference   string
	Ext         VoucherExt
}

// InvoiceStatus returns the status interpreted as an invoice status. A
// confirmed (Ready) invoice is Open.
func (v Voucher) InvoiceStatus() InvoiceStatus {
	if v.Status == StatusReady {
		return InvoiceOpen
	}
	return InvoiceStatus(v.Status)
}

// VoucherExt holds the type-specific fields of a voucher.
type VoucherExt struct {
	PaymentTerms    string        `json:"payment_terms,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
	Comment         string        `json:"comment,omitempty"`
	PaymentVoucher  int64         `json:"payment_voucher,omitempty"`
	LinkedInvoice   int64         `json:"linked_invoice,omitempty"`
	PaymentDate     string        `json:"payment_date,omitempty"`
	Extra           Extra         `json:"-"`
}

type voucherExt VoucherExt

var voucherExtKeys = []string{
	"payment_terms", "payment_method", "reference_number", "comment",
	"payment_voucher", "linked_invoice", "payment_date",
}

func (e VoucherExt) MarshalJSON() ([]byte, error) {
	return marshalExt(voucherExt(e), e.Extra)
}

func (e *VoucherExt) UnmarshalJSON(data []byte) error {
	var v voucherExt
	extra, err := unmarshalExt(data, &v, voucherExtKeys)
	if err != nil {
		return err
	}
	*e = VoucherExt(v)
	e.Extra = extra
	return nil
}

// Line is one debit or credit posting of a voucher.
type Line struct {
	ID          int64
	Row         int
	VoucherID   int64
	Date        time.Time
	Account     int
	Allocation  int64
	Description string
	Debit       int64 // minor units
	Credit      int64 // minor units
	VATPercent  decimal.NullDecimal
	VATCode     int
	PartnerID   *int64
	BatchID     *int64
}

// Signed returns debit minus credit.
func (l Line) Signed() int64 {
	return l.Debit - l.Credit
}

// Attachment is a file stored with a voucher. Data is nil when only the
// metadata was loaded.
type Attachment struct {
	ID        int64
	VoucherID int64
	Filename  string
	Role      string
	MIMEType  string
	SHA256    string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"
