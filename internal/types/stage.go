package types

// Stage is one node of the fixed stage graph. The graph is a linear chain
// except for the Validation -> Invalid fork; extending it is a design-level
// change, not configuration.
type Stage string

const (
	StagePending                     Stage = "pending"
	StageValidation                  Stage = "validation"
	StageGenerateTitle               Stage = "generate_title"
	StageGenerateSectionNames        Stage = "generate_section_names"
	StageGenerateSubSections         Stage = "generate_sub_sections"
	StageGenerateSubSectionQuestions Stage = "generate_sub_section_questions"
	StageGenerateSearchQueries       Stage = "generate_search_queries"
	StageRunSearch                   Stage = "run_search"
	StageScrapePages                 Stage = "scrape_pages"
	StageExtractContent              Stage = "extract_content"
	StageFormatContent               Stage = "format_content"
	StageClassifySources             Stage = "classify_sources"
	StageExtractData                 Stage = "extract_data"
	StageClassifyData                Stage = "classify_data"
	StageChunkContent                Stage = "chunk_content"
	StageIndexChunks                 Stage = "index_chunks"
	StageAnswerQuestions             Stage = "answer_questions"
	StageSectionizeAnswers           Stage = "sectionize_answers"
	StageIdentifyVisuals             Stage = "identify_visuals"
	StageGenerateVisuals             Stage = "generate_visuals"
	StageIdentifyVisualInsertions    Stage = "identify_visual_insertions"
	StageRender                      Stage = "render"
	StageGeneratePreview             Stage = "generate_preview"
	StageDone                        Stage = "done"
	StageInvalid                     Stage = "invalid"
)

// stageChain is the linear ordering. Invalid is terminal but off-chain.
var stageChain = []Stage{
	StagePending,
	StageValidation,
	StageGenerateTitle,
	StageGenerateSectionNames,
	StageGenerateSubSections,
	StageGenerateSubSectionQuestions,
	StageGenerateSearchQueries,
	StageRunSearch,
	StageScrapePages,
	StageExtractContent,
	StageFormatContent,
	StageClassifySources,
	StageExtractData,
	StageClassifyData,
	StageChunkContent,
	StageIndexChunks,
	StageAnswerQuestions,
	StageSectionizeAnswers,
	StageIdentifyVisuals,
	StageGenerateVisuals,
	StageIdentifyVisualInsertions,
	StageRender,
	StageGeneratePreview,
	StageDone,
}

var stageOrder = func() map[Stage]int {
	m := make(map[Stage]int, len(stageChain))
	for i, s := range stageChain {
		m[s] = i
	}
	return m
}()

// NextStage returns the stage that follows last in the chain, or false when
// last is terminal (Done, Invalid) or unknown.
func NextStage(last Stage) (Stage, bool) {
	i, ok := stageOrder[last]
	if !ok || i+1 >= len(stageChain) {
		return "", false
	}
	return stageChain[i+1], true
}

// StageOrder returns the chain index of s, or -1 for Invalid/unknown tags.
func StageOrder(s Stage) int {
	if i, ok := stageOrder[s]; ok {
		return i
	}
	return -1
}

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageInvalid
}
