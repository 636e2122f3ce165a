package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that the provider has no record for the requested
// profile. Callers treat this as a lookup miss, not a transport failure.
var ErrNotFound = errors.New("profile not found")

// Record is the canonical, immutable view of a professional profile. All
// code outside this package operates on Records only; raw provider payload
// shapes never escape the normalizer.
type Record struct {
	Name           string
	Headline       string
	Summary        string
	Location       string
	ProfileURL     string // canonical identifier, used for de-duplication
	Skills         []string
	Positions      []Position // provider-reported recency order
	Education      []Education
	Certifications []string
}

// Position is one entry of a profile's employment history.
type Position struct {
	Title       string
	Company     string
	Description string
	StartDate   string
	EndDate     string
}

// Education is one entry of a profile's education history.
type Education struct {
	School    string
	Degree    string
	Field     string
	StartDate string
	EndDate   string
}

// Raw provider payload shapes. The provider reports success as a flag inside
// the body rather than via HTTP status.
type rawEnvelope struct {
	Success bool      `json:"success"`
	Person  rawPerson `json:"person"`
}

type rawPerson struct {
	FirstName      string              `json:"firstName"`
	LastName       string              `json:"lastName"`
	Headline       string              `json:"headline"`
	Summary        string              `json:"summary"`
	Location       string              `json:"location"`
	LinkedInURL    string              `json:"linkedInUrl"`
	Skills         []string            `json:"skills"`
	Positions      rawPositionHistory  `json:"positions"`
	Schools        rawEducationHistory `json:"schools"`
	Certifications rawCertifications   `json:"certifications"`
}

type rawPositionHistory struct {
	PositionHistory []rawPosition `json:"positionHistory"`
}

type rawPosition struct {
	Title        string       `json:"title"`
	CompanyName  string       `json:"companyName"`
	Description  string       `json:"description"`
	StartEndDate rawDateRange `json:"startEndDate"`
}

type rawEducationHistory struct {
	EducationHistory []rawEducation `json:"educationHistory"`
}

type rawEducation struct {
	SchoolName   string       `json:"schoolName"`
	DegreeName   string       `json:"degreeName"`
	FieldOfStudy string       `json:"fieldOfStudy"`
	StartEndDate rawDateRange `json:"startEndDate"`
}

type rawCertifications struct {
	CertificationHistory []rawCertification `json:"certificationHistory"`
}

type rawCertification struct {
	Name string `json:"name"`
}

type rawDateRange struct {
	Start rawDate `json:"start"`
	End   rawDate `json:"end"`
}

type rawDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Normalize validates a raw provider payload and converts it into a Record.
// A payload whose success flag is unset yields ErrNotFound.
func Normalize(payload []byte) (*Record, error) {
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding profile payload: %w", err)
	}
	if !env.Success {
		return nil, ErrNotFound
	}

	p := env.Person
	rec := &Record{
		Name:       strings.TrimSpace(p.FirstName + " " + p.LastName),
		Headline:   p.Headline,
		Summary:    p.Summary,
		Location:   p.Location,
		ProfileURL: p.LinkedInURL,
		Skills:     p.Skills,
	}

	for _, pos := range p.Positions.PositionHistory {
		rec.Positions = append(rec.Positions, Position{
			Title:       pos.Title,
			Company:     pos.CompanyName,
			Description: pos.Description,
			StartDate:   pos.StartEndDate.Start.format(),
			EndDate:     pos.StartEndDate.End.format(),
		})
	}
	for _, edu := range p.Schools.EducationHistory {
		rec.Education = append(rec.Education, Education{
			School:    edu.SchoolName,
			Degree:    edu.DegreeName,
			Field:     edu.FieldOfStudy,
			StartDate: edu.StartEndDate.Start.format(),
			EndDate:   edu.StartEndDate.End.format(),
		})
	}
	for _, cert := range p.Certifications.CertificationHistory {
		if cert.Name != "" {
			rec.Certifications = append(rec.Certifications, cert.Name)
		}
	}
	return rec, nil
}

// format renders a provider date as "month/year", "year", or "".
func (d rawDate) format() string {
	switch {
	case d.Year != 0 && d.Month != 0:
		return fmt.Sprintf("%d/%d", d.Month, d.Year)
	case d.Year != 0:
		return fmt.Sprintf("%d", d.Year)
	default:
		return ""
	}
}
