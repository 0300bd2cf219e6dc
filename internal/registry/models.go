package registry

import (
	"bytes"
	"encoding/json"
	"strings"

	"tradesync/internal/trade/models"
)

// LegalInfo is the registry view of a legal entity.
type LegalInfo struct {
	CompanyName        string     `json:"company_name"`
	CompanyShortName   string     `json:"company_short_name"`
	HomeRegion         flexString `json:"home_region"`
	CertificateGivenBy flexString `json:"certificate_given_by"`
}

// IndividualInfo is the registry view of an individual entrepreneur.
type IndividualInfo struct {
	FirstName          string     `json:"firstname"`
	LastName           string     `json:"lastname"`
	RegistrationRegion flexString `json:"registration_address_region_soato"`
	CertGivenBy        flexString `json:"cert_given_by"`
}

// ToOrganization maps the lookup onto an organization for identifier.
// Absent fields stay nil so a merge leaves stored values alone.
func (l *LegalInfo) ToOrganization(identifier string) *models.Organization {
	return &models.Organization{
		Identifier: identifier,
		Kind:       models.PartyLegal,
		Name:       models.StringPtr(strings.TrimSpace(l.CompanyName)),
		ShortName:  models.StringPtr(strings.TrimSpace(l.CompanyShortName)),
		Region:     l.HomeRegion.ptr(),
		District:   l.CertificateGivenBy.ptr(),
	}
}

func (i *IndividualInfo) ToOrganization(identifier string) *models.Organization {
	return &models.Organization{
		Identifier: identifier,
		Kind:       models.PartyIndividual,
		FirstName:  models.StringPtr(strings.TrimSpace(i.FirstName)),
		LastName:   models.StringPtr(strings.TrimSpace(i.LastName)),
		Region:     i.RegistrationRegion.ptr(),
		District:   i.CertGivenBy.ptr(),
	}
}

// flexString accepts a JSON string or number. Region codes arrive as
// either depending on the registry.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) ptr() *string {
	return models.StringPtr(strings.TrimSpace(string(f)))
}
