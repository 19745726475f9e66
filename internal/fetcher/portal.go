package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/model"
	"github.com/sells-group/school-cli/internal/normalize"
)

// DefaultPortalBaseURL is the SARAS affiliation portal.
const DefaultPortalBaseURL = "https://saras.cbse.gov.in"

// portalDetailPath is the school detail report page.
const portalDetailPath = "/maps/finalreportDetail"

// Field names extracted from the portal report page.
const (
	FieldName           = "name"
	FieldUDISECode      = "udise_code"
	FieldPrincipalName  = "principal_name"
	FieldPrincipalPhone = "principal_phone"
	FieldPrincipalEmail = "principal_email"
	FieldSchoolEmail    = "school_email"
	FieldAddress        = "address"
	FieldPincode        = "pincode"
	FieldWebsite        = "website"
	FieldFeeAdmission   = "fee_admission"
	FieldFeeDevelopment = "fee_development"
	FieldFeeOther       = "fee_other"
	FieldFeeTuition     = "fee_tuition"
)

// Anchor binds an element id on the report page to a field name.
type Anchor struct {
	ID    string
	Field string
}

// Anchors is the element-id table for the report page. Grade enrollment
// anchors are appended by init.
var Anchors = []Anchor{
	{"lblsch_name", FieldName},
	{"txtudise", FieldUDISECode},
	{"lblprinci", FieldPrincipalName},
	{"lblprincicon", FieldPrincipalPhone},
	{"lblprinciemail", FieldPrincipalEmail},
	{"lblschemail", FieldSchoolEmail},
	{"lbladd", FieldAddress},
	{"txtpin", FieldPincode},
	{"lblschweb", FieldWebsite},
	{"lblsecadm", FieldFeeAdmission},
	{"lblsecdev", FieldFeeDevelopment},
	{"lblsecoth", FieldFeeOther},
	{"lblsectui", FieldFeeTuition},
}

func init() {
	for i := 1; i <= normalize.GradeSlots; i++ {
		Anchors = append(Anchors, Anchor{ID: fmt.Sprintf("lblstu%d", i), Field: GradeField(i)})
	}
}

// GradeField names the enrollment field for grade 1..12.
func GradeField(grade int) string {
	return fmt.Sprintf("grade_%d", grade)
}

// Portal fetches school profiles from the affiliation portal.
type Portal struct {
	dl      Downloader
	baseURL string
}

// NewPortal creates a Portal. An empty baseURL selects DefaultPortalBaseURL.
func NewPortal(dl Downloader, baseURL string) *Portal {
	if baseURL == "" {
		baseURL = DefaultPortalBaseURL
	}
	return &Portal{dl: dl, baseURL: strings.TrimRight(baseURL, "/")}
}

// DetailURL returns the report page URL for an affiliation number.
func (p *Portal) DetailURL(affNo string) string {
	return p.baseURL + portalDetailPath + "?AffNo=" + url.QueryEscape(affNo)
}

// Fetch downloads and extracts the profile for affNo. It fails only when
// the page cannot be retrieved; missing fields come back as NotFound.
func (p *Portal) Fetch(ctx context.Context, affNo string) (*model.SchoolProfile, error) {
	src := p.DetailURL(affNo)

	body, err := p.dl.Download(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: fetch %s", affNo)
	}
	defer body.Close() //nolint:errcheck

	profile, err := Extract(body, affNo, src)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: extract %s", affNo)
	}
	return profile, nil
}

// ExtractFields reads every anchor in Anchors from the markup. A missing
// anchor maps to NotFound.
func ExtractFields(r io.Reader) (map[string]model.Value, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	fields := make(map[string]model.Value, len(Anchors))
	for _, a := range Anchors {
		sel := doc.Find("#" + a.ID).First()
		if sel.Length() == 0 {
			fields[a.Field] = model.NotFound
			continue
		}
		fields[a.Field] = model.Found(strings.TrimSpace(sel.Text()))
	}
	return fields, nil
}

// Extract builds a profile from report page markup and derives the fee and
// enrollment totals.
func Extract(r io.Reader, affNo, sourceURL string) (*model.SchoolProfile, error) {
	fields, err := ExtractFields(r)
	if err != nil {
		return nil, err
	}

	text := func(field string) string {
		v := fields[field]
		if !v.IsFound() {
			return ""
		}
		return v.String()
	}

	var grades [normalize.GradeSlots]string
	for i := range grades {
		grades[i] = text(GradeField(i + 1))
	}

	profile := &model.SchoolProfile{
		AffNo:          affNo,
		Name:           fields[FieldName],
		UDISECode:      fields[FieldUDISECode],
		PrincipalName:  fields[FieldPrincipalName],
		PrincipalPhone: fields[FieldPrincipalPhone],
		PrincipalEmail: fields[FieldPrincipalEmail],
		SchoolEmail:    fields[FieldSchoolEmail],
		Address:        fields[FieldAddress],
		Pincode:        fields[FieldPincode],
		Website:        fields[FieldWebsite],
		AnnualFee: normalize.ComputeFee(
			text(FieldFeeAdmission),
			text(FieldFeeDevelopment),
			text(FieldFeeOther),
			text(FieldFeeTuition),
		),
		TotalStrength: normalize.ComputeEnrollment(grades),
		SourceURL:     sourceURL,
	}

	if !profile.HasData() {
		zap.L().Debug("portal: page has no profile fields", zap.String("aff_no", affNo))
	}
	return profile, nil
}
