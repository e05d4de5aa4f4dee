package docpipe

// Format identifies a document type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatPPTX Format = "pptx"
)

// Table is a grid of cell texts. Columns is the declared grid width, which
// may exceed the length of a short row.
type Table struct {
	TableNumber int        `json:"table_number"`
	Rows        int        `json:"rows"`
	Columns     int        `json:"columns"`
	Data        [][]string `json:"data"`
}

// Paragraph is a non-empty body paragraph and its style name.
type Paragraph struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

// DocxMetadata is the file and core-property summary of a parsed DOCX.
type DocxMetadata struct {
	Filename       string  `json:"filename"`
	FileSizeMB     float64 `json:"file_size_mb"`
	Author         string  `json:"author"`
	Title          string  `json:"title"`
	Subject        string  `json:"subject"`
	Created        *string `json:"created"`
	Modified       *string `json:"modified"`
	LastModifiedBy string  `json:"last_modified_by"`
}

// DocxContent is the body of a parsed DOCX.
type DocxContent struct {
	Paragraphs     []Paragraph `json:"paragraphs"`
	ParagraphCount int         `json:"paragraph_count"`
	Tables         []Table     `json:"tables"`
	TableCount     int         `json:"table_count"`
}

// DocxResult is returned by ParseDocx.
type DocxResult struct {
	Metadata DocxMetadata `json:"metadata"`
	Content  DocxContent  `json:"content"`
}

// PDFMetadata summarizes a parsed PDF. Info holds the non-empty entries of
// the document information dictionary.
type PDFMetadata struct {
	Filename   string            `json:"filename"`
	FileSizeMB float64           `json:"file_size_mb"`
	Pages      int               `json:"pages"`
	Info       map[string]string `json:"metadata"`
}

// PDFPage is one parsed page. Width and Height are in points.
type PDFPage struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Tables     []Table `json:"tables"`
}

// PDFResult is returned by ParsePDF.
type PDFResult struct {
	Metadata         PDFMetadata `json:"metadata"`
	Pages            []PDFPage   `json:"pages"`
	TotalPagesParsed int         `json:"total_pages_parsed"`
}

// XLSXMetadata summarizes a parsed workbook.
type XLSXMetadata struct {
	Filename    string   `json:"filename"`
	FileSizeMB  float64  `json:"file_size_mb"`
	SheetsCount int      `json:"sheets_count"`
	SheetNames  []string `json:"sheet_names"`
	Creator     string   `json:"creator"`
	Title       string   `json:"title"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Created     *string  `json:"created"`
	Modified    *string  `json:"modified"`
}

// Sheet is one parsed worksheet. Data cells are nil, float64, bool or
// string; formula cells hold the formula text ("=SUM(A1:A3)") and dates are
// ISO-8601 strings.
type Sheet struct {
	Name        string            `json:"name"`
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	Data        [][]any           `json:"data"`
	MergedCells []string          `json:"merged_cells"`
	Formulas    map[string]string `json:"formulas,omitempty"`
}

// XLSXResult is returned by ParseXLSX.
type XLSXResult struct {
	Metadata          XLSXMetadata `json:"metadata"`
	Sheets            []Sheet      `json:"sheets"`
	TotalSheetsParsed int          `json:"total_sheets_parsed"`
}

// PPTXMetadata summarizes a parsed presentation. Slide dimensions are in
// EMU (914400 per inch).
type PPTXMetadata struct {
	Filename    string  `json:"filename"`
	FileSizeMB  float64 `json:"file_size_mb"`
	SlideCount  int     `json:"slide_count"`
	SlideWidth  int64   `json:"slide_width"`
	SlideHeight int64   `json:"slide_height"`
	Author      string  `json:"author"`
	Title       string  `json:"title"`
	Subject     string  `json:"subject"`
	Created     *string `json:"created"`
	Modified    *string `json:"modified"`
}

// Image is a picture placed on a slide.
type Image struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Slide is one parsed slide. Texts excludes the title shape.
type Slide struct {
	SlideNumber int      `json:"slide_number"`
	Title       string   `json:"title"`
	ShapeCount  int      `json:"shape_count"`
	Texts       []string `json:"texts"`
	Tables      []Table  `json:"tables"`
	Images      []Image  `json:"images,omitempty"`
	Notes       string   `json:"notes"`
}

// PPTXResult is returned by ParsePPTX.
type PPTXResult struct {
	Metadata          PPTXMetadata `json:"metadata"`
	Slides            []Slide      `json:"slides"`
	TotalSlidesParsed int          `json:"total_slides_parsed"`
}

// Text is returned by ExtractText.
type Text struct {
	Filename string `json:"filename"`
	Format   Format `json:"format"`
	Text     string `json:"text"`
}
