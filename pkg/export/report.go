package export

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// ReportDocument is the format-independent field set shared by every
// export format of an event report.
type ReportDocument struct {
	ReportID          string
	Title             string
	EventTitle        string
	ReportType        string
	Status            string
	TotalParticipants *int
	CreatedAt         time.Time
	Content           string
	GeneratedAt       time.Time
}

const reportDateLayout = "Mon Jan 02 2006"

// Filename builds the download filename for a report export. Anything
// outside [A-Za-z0-9] in the title becomes an underscore.
func Filename(reportID, title, ext string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return fmt.Sprintf("event-report-%s-%s.%s", reportID, b.String(), ext)
}

func (d ReportDocument) typeLabel() string {
	return strings.ReplaceAll(d.ReportType, "_", " ")
}

func (d ReportDocument) participantsLabel() string {
	if d.TotalParticipants == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *d.TotalParticipants)
}

// RenderText produces the plain-text export. The output depends only on
// the document fields so repeated renders are byte-identical.
func RenderText(d ReportDocument) []byte {
	var b strings.Builder
	b.WriteString("EVENT REPORT\n")
	b.WriteString("============\n\n")
	b.WriteString("Report ID: " + d.ReportID + "\n")
	b.WriteString("Title: " + d.Title + "\n")
	b.WriteString("Event: " + d.EventTitle + "\n")
	b.WriteString("Report Type: " + d.typeLabel() + "\n")
	b.WriteString("Status: " + d.Status + "\n")
	b.WriteString("Total Participants: " + d.participantsLabel() + "\n")
	b.WriteString("Created: " + d.CreatedAt.Format(reportDateLayout) + "\n\n")
	b.WriteString("Content:\n")
	b.WriteString(d.Content)
	b.WriteString("\n")
	return []byte(b.String())
}

// RenderHTML produces a standalone HTML document. Every field, content
// included, is escaped; content newlines become paragraphs.
func RenderHTML(d ReportDocument) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(d.Title) + "</title>\n")
	b.WriteString("<style>body{font-family:sans-serif;margin:2em}h1{border-bottom:2px solid #333}dt{font-weight:bold}dd{margin:0 0 .5em 0}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<h1>Event Report</h1>\n<dl>\n")
	writeField := func(label, value string) {
		b.WriteString("<dt>" + html.EscapeString(label) + "</dt><dd>" + html.EscapeString(value) + "</dd>\n")
	}
	writeField("Report ID", d.ReportID)
	writeField("Title", d.Title)
	writeField("Event", d.EventTitle)
	writeField("Report Type", d.typeLabel())
	writeField("Status", d.Status)
	writeField("Total Participants", d.participantsLabel())
	writeField("Created", d.CreatedAt.Format(reportDateLayout))
	b.WriteString("</dl>\n<h2>Content</h2>\n")
	for _, line := range strings.Split(d.Content, "\n") {
		b.WriteString("<p>" + html.EscapeString(line) + "</p>\n")
	}
	b.WriteString("<footer>Generated at " + html.EscapeString(d.GeneratedAt.UTC().Format(time.RFC3339)) + "</footer>\n")
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

func (d ReportDocument) dataset() Dataset {
	flatten := func(raw string) string {
		return strings.ReplaceAll(strings.ReplaceAll(raw, "\r\n", " "), "\n", " ")
	}
	rows := []map[string]string{
		{"Field": "Report ID", "Value": d.ReportID},
		{"Field": "Title", "Value": d.Title},
		{"Field": "Event", "Value": d.EventTitle},
		{"Field": "Report Type", "Value": d.typeLabel()},
		{"Field": "Status", "Value": d.Status},
		{"Field": "Total Participants", "Value": d.participantsLabel()},
		{"Field": "Created", "Value": d.CreatedAt.Format(reportDateLayout)},
		{"Field": "Content", "Value": flatten(d.Content)},
	}
	return Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
}

// RenderCSV produces a two-column Field,Value CSV. Quoting follows
// RFC 4180 so values containing commas or quotes round-trip.
func RenderCSV(d ReportDocument) ([]byte, error) {
	return NewCSVExporter().Render(d.dataset())
}

// RenderPDF produces a tabular PDF rendition of the same field set.
func RenderPDF(d ReportDocument) ([]byte, error) {
	return NewPDFExporter().Render(d.dataset(), "Event Report")
}
