package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/entry.txt
	entryRaw string

	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string

	//go:embed template/greeter.txt
	greeterRaw string

	//go:embed template/rag_answer.txt
	ragAnswerRaw string

	//go:embed template/sql_generate.txt
	sqlGenerateRaw string

	//go:embed template/sql_review.txt
	sqlReviewRaw string

	//go:embed template/sql_answer.txt
	sqlAnswerRaw string

	//go:embed template/file_selector.txt
	fileSelectorRaw string

	//go:embed template/csv_generate.txt
	csvGenerateRaw string

	//go:embed template/code_review.txt
	codeReviewRaw string

	//go:embed template/code_answer.txt
	codeAnswerRaw string

	//go:embed template/endpoint_selector.txt
	endpointSelectorRaw string

	//go:embed template/api_generate.txt
	apiGenerateRaw string
)

// PromptSet holds loaded prompt content. Placeholders use FString syntax
// and are filled per invoke, so runtime values never get re-templated.
type PromptSet struct {
	Entry            string
	Supervisor       string
	Summarizer       string
	Greeter          string
	RagAnswer        string
	SqlGenerate      string
	SqlReview        string
	SqlAnswer        string
	FileSelector     string
	CsvGenerate      string
	CodeReview       string
	CodeAnswer       string
	EndpointSelector string
	ApiGenerate      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Entry:            strings.TrimSpace(entryRaw),
		Supervisor:       strings.TrimSpace(supervisorRaw),
		Summarizer:       strings.TrimSpace(summarizerRaw),
		Greeter:          strings.TrimSpace(greeterRaw),
		RagAnswer:        strings.TrimSpace(ragAnswerRaw),
		SqlGenerate:      strings.TrimSpace(sqlGenerateRaw),
		SqlReview:        strings.TrimSpace(sqlReviewRaw),
		SqlAnswer:        strings.TrimSpace(sqlAnswerRaw),
		FileSelector:     strings.TrimSpace(fileSelectorRaw),
		CsvGenerate:      strings.TrimSpace(csvGenerateRaw),
		CodeReview:       strings.TrimSpace(codeReviewRaw),
		CodeAnswer:       strings.TrimSpace(codeAnswerRaw),
		EndpointSelector: strings.TrimSpace(endpointSelectorRaw),
		ApiGenerate:      strings.TrimSpace(apiGenerateRaw),
	}
}
