// Package formatter renders verification reports for the terminal.
package formatter

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnolang/hoare/verify"
)

const tabWidth = 8

var (
	errorStyle    = color.New(color.FgRed, color.Bold)
	warningStyle  = color.New(color.FgHiYellow, color.Bold)
	functionStyle = color.New(color.FgYellow, color.Bold)
	fileStyle     = color.New(color.FgCyan, color.Bold)
	lineStyle     = color.New(color.FgHiBlue, color.Bold)
	messageStyle  = color.New(color.FgRed, color.Bold)
	successStyle  = color.New(color.FgGreen, color.Bold)
	noteStyle     = color.New(color.FgWhite)
)

// SourceCode holds the lines of a source file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads filename into lines.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return &SourceCode{Lines: strings.Split(string(content), "\n")}, nil
}

const failureTemplate = `{{header .Severity .Function .Message .MaxLineNumWidth .Filename .Line -}}
{{snippet .SnippetLine .Line .MaxLineNumWidth .Padding -}}
{{range .Notes}}{{note $.Padding .}}{{end}}
`

var failureTmpl = template.Must(template.New("failure").Funcs(template.FuncMap{
	"header":  header,
	"snippet": codeSnippet,
	"note":    note,
}).Parse(failureTemplate))

// FailureData is the input of the failure template.
type FailureData struct {
	Severity        string
	Function        string
	Message         string
	Filename        string
	Line            int
	MaxLineNumWidth int
	Padding         string
	SnippetLine     string
	Notes           []string
}

// GenerateFormattedReport formats the failures of one file. Verified
// functions are listed too when verbose is set. snippet may be nil.
func GenerateFormattedReport(report verify.FileReport, snippet *SourceCode, verbose bool) string {
	var builder strings.Builder
	if report.Error != "" {
		builder.WriteString(errorStyle.Sprint("error: "))
		builder.WriteString(messageStyle.Sprintf("%s\n\n", report.Error))
	}
	for _, fn := range report.Functions {
		if fn.Verified {
			if verbose {
				builder.WriteString(verified(report.File, fn))
			}
			continue
		}
		builder.WriteString(buildFailure(report.File, fn, snippet))
	}
	return builder.String()
}

func verified(filename string, fn verify.FunctionReport) string {
	out := successStyle.Sprint("verified: ")
	out += functionStyle.Sprint(fn.Function)
	out += noteStyle.Sprintf(" (%s", fn.Elapsed)
	if fn.Line > 0 {
		out += noteStyle.Sprint(", ")
		out += fileStyle.Sprintf("%s:%d", filename, fn.Line)
	}
	return out + noteStyle.Sprint(")\n")
}

func buildFailure(filename string, fn verify.FunctionReport, snippet *SourceCode) string {
	width := calculateMaxLineNumWidth(fn.Line)
	data := FailureData{
		Severity:        severity(fn),
		Function:        fn.Function,
		Message:         fn.Error,
		Filename:        filename,
		Line:            fn.Line,
		MaxLineNumWidth: width,
		Padding:         strings.Repeat(" ", width+1),
	}
	if snippet != nil && fn.Line > 0 && fn.Line <= len(snippet.Lines) {
		data.SnippetLine = expandTabs(snippet.Lines[fn.Line-1])
	}
	if len(fn.Model) > 0 {
		values := make([]string, 0, len(fn.Model))
		for _, name := range fn.ModelNames() {
			values = append(values, name+" = "+fn.Model[name])
		}
		data.Notes = append(data.Notes, "counterexample: "+strings.Join(values, ", "))
	}
	if fn.VC != "" {
		data.Notes = append(data.Notes, "vc: "+fn.VC)
	}

	var buf bytes.Buffer
	if err := failureTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting report: %v", err)
	}
	return buf.String()
}

// severity is a warning when the solver could not decide.
func severity(fn verify.FunctionReport) string {
	if fn.Inconclusive {
		return "WARNING"
	}
	return "ERROR"
}

// utils functions used in the text templates

func header(severity, function, message string, maxLineNumWidth int, filename string, line int) string {
	var endString string
	switch severity {
	case "WARNING":
		endString = warningStyle.Sprint("warning: ")
	default:
		endString = errorStyle.Sprint("error: ")
	}
	endString += functionStyle.Sprintf("%s: ", function)
	endString += messageStyle.Sprintf("%s\n", message)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	if line > 0 {
		endString += fileStyle.Sprintf("%s:%d\n", filename, line)
	} else {
		endString += fileStyle.Sprintf("%s\n", filename)
	}
	return endString
}

func codeSnippet(snippetLine string, line int, maxLineNumWidth int, padding string) string {
	if snippetLine == "" {
		return ""
	}
	endString := lineStyle.Sprintf("%s|\n", padding)
	endString += lineStyle.Sprintf("%*d | ", maxLineNumWidth, line)
	endString += fmt.Sprintf("%s\n", snippetLine)
	endString += lineStyle.Sprintf("%s|\n", padding)
	return endString
}

func note(padding, text string) string {
	return lineStyle.Sprintf("%s= ", padding) + noteStyle.Sprintf("%s\n", text)
}

// Summary counts the verified functions of reports.
func Summary(reports []verify.FileReport) string {
	var total, ok, unloaded int
	for _, r := range reports {
		if r.Error != "" {
			unloaded++
		}
		for _, fn := range r.Functions {
			total++
			if fn.Verified {
				ok++
			}
		}
	}

	files := "files"
	if len(reports) == 1 {
		files = "file"
	}
	text := fmt.Sprintf("verified %d of %d functions in %d %s", ok, total, len(reports), files)
	if unloaded > 0 {
		text += fmt.Sprintf(", %d not loaded", unloaded)
	}
	if ok == total && unloaded == 0 {
		return successStyle.Sprintln(text)
	}
	return errorStyle.Sprintln(text)
}

func calculateMaxLineNumWidth(line int) int {
	return len(fmt.Sprintf("%d", line))
}

// expandTabs replaces tabs with spaces up to the next tab stop.
func expandTabs(line string) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	col := 0
	for _, ch := range line {
		if ch == '\t' {
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(ch)
		col++
	}
	return b.String()
}
