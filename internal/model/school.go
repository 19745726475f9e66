// Package model defines the school profile, lead and engagement records
// shared by the fetch, store and enrichment layers.
package model

import "strings"

// Store column names. The profile header matches the persisted schools file.
const (
	ColSchoolName     = "School Name"
	ColAffNo          = "Aff No"
	ColUDISECode      = "UDISE Code"
	ColPrincipalName  = "Principal Name"
	ColPrincipalPhone = "Principal Number"
	ColPrincipalEmail = "Principal Email"
	ColSchoolEmail    = "School Email"
	ColAddress        = "Address"
	ColPincode        = "Pincode"
	ColWebsite        = "Website"
	ColFeeStructure   = "Fee Structure"
	ColTotalStrength  = "Total Strength"

	ColPerson     = "Person"
	ColSchoolCode = "SCHOOL_ID"

	ColRoundType     = "Type of Round"
	ColPrelimsDate   = "Prelims Date"
	ColRegistration  = "Reg"
	ColParticipation = "Part"
	ColRep           = "Rep"
)

// ProfileColumns is the header of the profile store.
var ProfileColumns = []string{
	ColSchoolName, ColAffNo, ColUDISECode, ColPrincipalName, ColPrincipalPhone,
	ColPrincipalEmail, ColSchoolEmail, ColAddress, ColPincode, ColWebsite,
	ColFeeStructure, ColTotalStrength,
}

// LeadColumns is the header of the lead assignment table.
var LeadColumns = []string{ColAffNo, ColPerson, ColSchoolCode}

// RoundColumns is the header of the engagement rounds table.
var RoundColumns = []string{
	ColSchoolCode, ColRoundType, ColPrelimsDate, ColRegistration, ColParticipation, ColRep,
}

// SchoolProfile is the canonical record for one affiliated school.
type SchoolProfile struct {
	AffNo          string `json:"aff_no" yaml:"aff_no"`
	Name           Value  `json:"school_name" yaml:"school_name"`
	UDISECode      Value  `json:"udise_code" yaml:"udise_code"`
	PrincipalName  Value  `json:"principal_name" yaml:"principal_name"`
	PrincipalPhone Value  `json:"principal_number" yaml:"principal_number"`
	PrincipalEmail Value  `json:"principal_email" yaml:"principal_email"`
	SchoolEmail    Value  `json:"school_email" yaml:"school_email"`
	Address        Value  `json:"address" yaml:"address"`
	Pincode        Value  `json:"pincode" yaml:"pincode"`
	Website        Value  `json:"website" yaml:"website"`
	AnnualFee      Amount `json:"fee_structure" yaml:"fee_structure"`
	TotalStrength  Amount `json:"total_strength" yaml:"total_strength"`
	SourceURL      string `json:"saras_link" yaml:"saras_link"`
}

// HasData reports whether at least one scraped field is present.
func (p *SchoolProfile) HasData() bool {
	for _, v := range p.values() {
		if v.IsFound() {
			return true
		}
	}
	return p.AnnualFee.Valid || p.TotalStrength.Valid
}

func (p *SchoolProfile) values() []Value {
	return []Value{
		p.Name, p.UDISECode, p.PrincipalName, p.PrincipalPhone, p.PrincipalEmail,
		p.SchoolEmail, p.Address, p.Pincode, p.Website,
	}
}

// Row renders the profile in ProfileColumns order.
func (p *SchoolProfile) Row() []string {
	return []string{
		p.Name.String(),
		strings.TrimSpace(p.AffNo),
		p.UDISECode.String(),
		p.PrincipalName.String(),
		p.PrincipalPhone.String(),
		p.PrincipalEmail.String(),
		p.SchoolEmail.String(),
		p.Address.String(),
		p.Pincode.String(),
		p.Website.String(),
		p.AnnualFee.String(),
		p.TotalStrength.String(),
	}
}

// ProfileFromRecord builds a profile from a column-name keyed record.
// Columns missing from the record become NotFound.
func ProfileFromRecord(rec map[string]string) SchoolProfile {
	return SchoolProfile{
		AffNo:          strings.TrimSpace(rec[ColAffNo]),
		Name:           ValueOf(rec[ColSchoolName]),
		UDISECode:      ValueOf(rec[ColUDISECode]),
		PrincipalName:  ValueOf(rec[ColPrincipalName]),
		PrincipalPhone: ValueOf(rec[ColPrincipalPhone]),
		PrincipalEmail: ValueOf(rec[ColPrincipalEmail]),
		SchoolEmail:    ValueOf(rec[ColSchoolEmail]),
		Address:        ValueOf(rec[ColAddress]),
		Pincode:        ValueOf(rec[ColPincode]),
		Website:        ValueOf(rec[ColWebsite]),
		AnnualFee:      ParseAmount(rec[ColFeeStructure]),
		TotalStrength:  ParseAmount(rec[ColTotalStrength]),
	}
}

// LeadAssignment maps an affiliation number to its owning salesperson and
// internal school code.
type LeadAssignment struct {
	AffNo      string `json:"aff_no"`
	Person     string `json:"person"`
	SchoolCode string `json:"school_code"`
}

// EngagementRound is one row of a school's engagement history.
type EngagementRound struct {
	SchoolCode    string `json:"-" yaml:"-"`
	RoundType     Value  `json:"Type of Round" yaml:"type_of_round"`
	Date          Value  `json:"Prelims Date" yaml:"prelims_date"`
	Registration  Value  `json:"Reg" yaml:"reg"`
	Participation Value  `json:"Part" yaml:"part"`
	Rep           Value  `json:"Rep" yaml:"rep"`
}

// RoundKey identifies duplicate engagement rows.
type RoundKey struct {
	RoundType, Date, Registration, Participation, Rep string
}

// Key returns the deduplication tuple for the round.
func (r EngagementRound) Key() RoundKey {
	return RoundKey{
		RoundType:     r.RoundType.String(),
		Date:          r.Date.String(),
		Registration:  r.Registration.String(),
		Participation: r.Participation.String(),
		Rep:           r.Rep.String(),
	}
}

// Lead status and eligibility placeholders.
const (
	LeadStatusUnique     = "Unique Lead"
	EligibleNotAvailable = "Not Available"
)

// EnrichedProfile is a resolved profile plus relationship data. The
// enrichment fields are only populated when a lead assignment exists.
type EnrichedProfile struct {
	SchoolProfile `yaml:",inline"`

	LeadStatus    string            `json:"lead_status,omitempty" yaml:"lead_status,omitempty"`
	SchoolCode    string            `json:"school_code,omitempty" yaml:"school_code,omitempty"`
	Journey       []EngagementRound `json:"journey,omitempty" yaml:"journey,omitempty"`
	LeadOwner     string            `json:"lead_owner,omitempty" yaml:"lead_owner,omitempty"`
	EligibleAfter string            `json:"eligible_after,omitempty" yaml:"eligible_after,omitempty"`
}
