// Command mktemplates writes the bundled Word templates (invoice, letter,
// report, contract) into a directory. Their fields match
// templates_metadata.json.
//
//	go run ./cmd/mktemplates -dir templates
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/docmcp/observability"
	"github.com/hazyhaar/docmcp/ooxml"
)

func main() {
	dir := flag.String("dir", "templates", "output directory")
	force := flag.Bool("force", false, "overwrite existing templates")
	flag.Parse()

	logger, _ := observability.NewLogger(os.Stderr, "info")
	written, err := write(*dir, *force)
	if err != nil {
		logger.Error("write templates", "error", err)
		os.Exit(1)
	}
	for _, p := range written {
		logger.Info("template written", "path", p)
	}
}

// write saves every template not already present (all of them with force)
// and returns the written paths.
func write(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	all := templates()
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)

	var written []string
	for _, n := range names {
		p := filepath.Join(dir, n+".docx")
		if _, err := os.Stat(p); err == nil && !force {
			slog.Debug("template exists, skipped", "path", p)
			continue
		}
		if err := all[n].Save(p); err != nil {
			return written, fmt.Errorf("save %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

func templates() map[string]*ooxml.DocxBuilder {
	return map[string]*ooxml.DocxBuilder{
		"invoice":  invoice(),
		"letter":   letter(),
		"report":   report(),
		"contract": contract(),
	}
}

func invoice() *ooxml.DocxBuilder {
	b := ooxml.NewDocx().
		Heading(0, "INVOICE").
		Paragraph("{{.company_name}}").
		Paragraph("{{.company_address}}").
		Paragraph("{{if .company_phone}}Phone: {{.company_phone}}{{end}}").
		Paragraph("{{if .company_email}}Email: {{.company_email}}{{end}}").
		Heading(2, "Bill To").
		Paragraph("{{.customer_name}}").
		Paragraph("{{if .customer_address}}{{.customer_address}}{{end}}").
		Paragraph("{{if .customer_email}}{{.customer_email}}{{end}}").
		Paragraph("Invoice Number: {{.invoice_number}}").
		Paragraph("Invoice Date: {{.invoice_date | date}}").
		Paragraph("Due Date: {{.due_date | date}}").
		Table([][]string{
			{"Description", "Quantity", "Unit Price", "Total"},
			{"{{range .items}}", "", "", ""},
			{"{{.description}}", "{{.quantity}}", "{{.unit_price | currency}}", "{{.total | currency}}"},
			{"{{end}}", "", "", ""},
		}).
		Paragraph("Subtotal: {{.subtotal | currency}}").
		Paragraph("Tax{{if .tax_rate}} ({{.tax_rate}}){{end}}: {{.tax_amount | currency}}").
		Paragraph("Total: {{.total | currency}}").
		Paragraph("{{if .terms}}Terms: {{.terms}}{{end}}").
		Paragraph("{{if .notes}}{{.notes}}{{end}}")
	b.Core.Title = "Invoice"
	return b
}

func letter() *ooxml.DocxBuilder {
	b := ooxml.NewDocx().
		Paragraph("{{.sender_name}}").
		Paragraph("{{if .sender_title}}{{.sender_title}}{{end}}").
		Paragraph("{{.sender_address}}").
		Paragraph("{{if .sender_city}}{{.sender_city}}, {{.sender_state}} {{.sender_zip}}{{end}}").
		Paragraph("{{if .sender_email}}{{.sender_email}}{{end}}").
		Paragraph("{{if .sender_phone}}{{.sender_phone}}{{end}}").
		Paragraph("{{.letter_date | date}}").
		Paragraph("{{.recipient_name}}").
		Paragraph("{{if .recipient_title}}{{.recipient_title}}{{end}}").
		Paragraph("{{if .recipient_company}}{{.recipient_company}}{{end}}").
		Paragraph("{{.recipient_address}}").
		Paragraph("{{if .recipient_city}}{{.recipient_city}}, {{.recipient_state}} {{.recipient_zip}}{{end}}").
		Paragraph("{{if .subject}}Re: {{.subject}}{{end}}").
		Paragraph("{{.salutation}},").
		Paragraph("{{range .body_paragraphs}}").
		Paragraph("{{.}}").
		Paragraph("{{end}}").
		Paragraph("{{.closing}},").
		Paragraph("{{.sender_name}}").
		Paragraph("{{if .enclosures}}Enclosures: {{join \", \" .enclosures}}{{end}}").
		Paragraph("{{if .cc_list}}cc: {{join \", \" .cc_list}}{{end}}")
	b.Core.Title = "Letter"
	return b
}

func report() *ooxml.DocxBuilder {
	b := ooxml.NewDocx().
		Heading(0, "{{.report_title}}").
		Paragraph("{{if .report_subtitle}}{{.report_subtitle}}{{end}}").
		Paragraph("Author: {{.author_name}}{{if .department}}, {{.department}}{{end}}").
		Paragraph("Date: {{.report_date | date}}").
		Heading(1, "Executive Summary").
		Paragraph("{{.executive_summary}}").
		Paragraph("{{range .sections}}").
		Heading(1, "{{.title}}").
		Paragraph("{{.content}}").
		Paragraph("{{end}}").
		Paragraph("{{if .conclusions}}").
		Heading(1, "Conclusions").
		Paragraph("{{.conclusions}}").
		Paragraph("{{end}}").
		Paragraph("{{if .recommendations}}").
		Heading(1, "Recommendations").
		Paragraph("{{range .recommendations}}").
		Paragraph("- {{.}}").
		Paragraph("{{end}}").
		Paragraph("{{end}}")
	b.Core.Title = "Report"
	return b
}

func contract() *ooxml.DocxBuilder {
	b := ooxml.NewDocx().
		Heading(0, "{{.contract_type}} Agreement").
		Paragraph("Contract No. {{.contract_number}}").
		Paragraph("Date: {{.contract_date | date}}").
		Paragraph("Party A: {{.party1_name}}{{if .party1_short_name}} (\"{{.party1_short_name}}\"){{end}}").
		Paragraph("Address: {{.party1_address}}").
		Paragraph("Party B: {{.party2_name}}{{if .party2_short_name}} (\"{{.party2_short_name}}\"){{end}}").
		Paragraph("Address: {{.party2_address}}").
		Paragraph("{{if .whereas_clause}}WHEREAS {{.whereas_clause}}{{end}}").
		Paragraph("{{range .clauses}}").
		Heading(2, "{{.title}}").
		Paragraph("{{.content}}").
		Paragraph("{{range index . \"subclauses\"}}").
		Paragraph("{{.number}}. {{.content}}").
		Paragraph("{{end}}").
		Paragraph("{{end}}").
		Table([][]string{
			{"Party A", "Party B"},
			{"{{.party1_signatory}}", "{{.party2_signatory}}"},
			{"{{.party1_title}}", "{{.party2_title}}"},
			{"{{if .signature_date1}}{{.signature_date1 | date}}{{end}}", "{{if .signature_date2}}{{.signature_date2 | date}}{{end}}"},
		})
	b.Core.Title = "Contract"
	return b
}
