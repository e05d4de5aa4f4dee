package dispatch

const defaultLocale = "en"

func fileParam(kinds string) param {
	return param{name: "file_path", typ: typString, required: true, desc: "Absolute path to the " + kinds + " file"}
}

func templateParam(desc string) param {
	return param{name: "template_name", typ: typString, required: true, desc: desc}
}

// catalog is the fixed operation set, in the order tools are advertised.
func (d *Dispatcher) catalog() []*operation {
	return []*operation{
		{
			name: "generate_document",
			desc: "Generate a Word document from a template with provided data",
			params: []param{
				templateParam("Name of the template file (without path)"),
				{name: "context_data", typ: typObject, required: true, desc: "JSON object containing the data to fill the template"},
				{name: "output_name", typ: typString, desc: "Optional output filename (without extension). Defaults to <template>_<timestamp>"},
			},
			run: d.generateDocument,
		},
		{
			name: "list_templates",
			desc: "List all available Word templates",
			run:  d.listTemplates,
		},
		{
			name:   "validate_template",
			desc:   "Validate a template and extract its variables",
			params: []param{templateParam("Name of the template file to validate")},
			run:    d.validateTemplate,
		},
		{
			name: "preview_template",
			desc: "Preview template with sample data to check rendering",
			params: []param{
				templateParam("Name of the template file"),
				{name: "sample_data", typ: typObject, required: true, desc: "Sample data to preview the template"},
			},
			run: d.previewTemplate,
		},
		{
			name: "delete_document",
			desc: "Delete a generated document",
			params: []param{
				{name: "document_id", typ: typString, required: true, desc: "ID of the document to delete"},
			},
			run: d.deleteDocument,
		},
		{
			name: "list_documents",
			desc: "List all generated documents",
			run:  d.listDocuments,
		},
		{
			name:   "get_template_schema",
			desc:   "Get the complete schema for a template including all required and optional fields",
			params: []param{templateParam("Name of the template file")},
			run:    d.templateSchema,
		},
		{
			name: "generate_sample_data",
			desc: "Generate sample data for a template with all required fields filled",
			params: []param{
				templateParam("Name of the template file"),
				{name: "locale", typ: typString, def: defaultLocale, desc: "Locale for sample data (en or zh)"},
			},
			run: d.sampleData,
		},
		{
			name: "parse_docx_document",
			desc: "Parse a DOCX document and extract structured content including paragraphs, tables, and metadata",
			params: []param{
				fileParam("DOCX"),
				{name: "include_tables", typ: typBool, def: true, desc: "Whether to extract tables from the document"},
			},
			run: d.parseDocx,
		},
		{
			name: "parse_pdf_document",
			desc: "Parse a PDF document and extract text, tables, and metadata from each page",
			params: []param{
				fileParam("PDF"),
				{name: "include_tables", typ: typBool, def: true, desc: "Whether to extract tables from the PDF"},
				{name: "pages", typ: typString, def: "all", desc: "Page selection: 'all', a range '1-5', a list '1,3,5' or a single page"},
			},
			run: d.parsePDF,
		},
		{
			name:   "extract_text_from_document",
			desc:   "Quick text extraction from DOCX, PDF, Excel or PowerPoint documents (without structure analysis)",
			params: []param{fileParam("document (DOCX, PDF, XLSX or PPTX)")},
			run:    d.extractText,
		},
		{
			name:   "get_document_metadata",
			desc:   "Extract metadata information from DOCX, PDF, Excel or PowerPoint documents",
			params: []param{fileParam("document (DOCX, PDF, XLSX or PPTX)")},
			run:    d.documentMetadata,
		},
		{
			name: "parse_excel_document",
			desc: "Parse an Excel document (XLSX) and extract structured content including sheets, cells, and metadata",
			params: []param{
				fileParam("Excel"),
				{name: "sheet_name", typ: typString, desc: "Specific sheet name to parse (default: all sheets)"},
				{name: "include_formulas", typ: typBool, def: true, desc: "Whether to include cell formulas"},
			},
			run: d.parseExcel,
		},
		{
			name: "parse_ppt_document",
			desc: "Parse a PowerPoint document (PPTX) and extract slides, text, tables, images and notes",
			params: []param{
				fileParam("PPTX"),
				{name: "include_tables", typ: typBool, def: true, desc: "Whether to extract tables from slides"},
				{name: "include_images", typ: typBool, def: false, desc: "Whether to list pictures placed on slides"},
				{name: "slides", typ: typString, def: "all", desc: "Slide selection: 'all', a range '1-5', a list '1,3,5' or a single slide"},
			},
			run: d.parsePPT,
		},
	}
}
