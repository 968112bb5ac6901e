package model

// Partner is a customer or supplier.
type Partner struct {
	ID    int64
	Name  string
	VATID string
	Ext   PartnerExt
	IBANs []string
}

// PartnerExt holds the address fields of a partner.
type PartnerExt struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	Email      string `json:"email,omitempty"`
	Extra      Extra  `json:"-"`
}

type partnerExt PartnerExt

var partnerExtKeys = []string{"street", "postal_code", "city", "country", "email"}

func (e PartnerExt) MarshalJSON() ([]byte, error) {
	return marshalExt(partnerExt(e), e.Extra)
}

func (e *PartnerExt) UnmarshalJSON(data []byte) error {
	var p partnerExt
	extra, err := unmarshalExt(data, &p, partnerExtKeys)
	if err != nil {
		return err
	}
	*e = PartnerExt(p)
	e.Extra = extra
	return nil
}

// TaxAuthorityPartner is the partner seeded into every new ledger.
const TaxAuthorityPartner = "Tax Authority"

// AllocationType classifies allocations.
type AllocationType int

const (
	AllocationGeneral AllocationType = iota
	AllocationCostCenter
	AllocationProject
	AllocationTag
)

// Valid reports whether t is within 0..3.
func (t AllocationType) Valid() bool {
	return t >= AllocationGeneral && t <= AllocationTag
}

// GeneralAllocation is the id of the default allocation present in every ledger.
const GeneralAllocation int64 = 0

// Allocation is a cost center, project or tag. Parent links form a tree.
type Allocation struct {
	ID     int64
	Type   AllocationType
	Parent *int64
	Ext    AllocationExt
}

// DisplayName returns the name in lang, falling back to English and then to
// any available translation.
func (a Allocation) DisplayName(lang string) string {
	if n := a.Ext.Name[lang]; n != "" {
		return n
	}
	if n := a.Ext.Name["en"]; n != "" {
		return n
	}
	for _, n := range a.Ext.Name {
		if n != "" {
			return n
		}
	}
	return ""
}

// AllocationExt holds the localized name of an allocation.
type AllocationExt struct {
	Name  map[string]string `json:"name,omitempty"`
	Extra Extra             `json:"-"`
}

type allocationExt AllocationExt

var allocationExtKeys = []string{"name"}

func (e AllocationExt) MarshalJSON() ([]byte, error) {
	return marshalExt(allocationExt(e), e.Extra)
}

func (e *AllocationExt) UnmarshalJSON(data []byte) error {
	var a allocationExt
	extra, err := unmarshalExt(data, &a, allocationExtKeys)
	if err != nil {
		return err
	}
	*e = AllocationExt(a)
	e.Extra = extra
	return nil
}
