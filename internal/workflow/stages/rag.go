package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/vector"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// ChunkContent derives retrievable chunks from the classified sources.
// Currently one chunk per source carrying its full content; the field shape
// allows a real splitter later without changing the stage contract.
type ChunkContent struct {
	deps *Deps
	log  *logger.Logger
}

func NewChunkContent(deps *Deps) *ChunkContent {
	return &ChunkContent{deps: deps, log: deps.stageLog("chunk_content")}
}

func (s *ChunkContent) Stage() types.Stage { return types.StageChunkContent }

func (s *ChunkContent) Run(_ context.Context, state *types.ReportState) error {
	if len(state.Sources) == 0 {
		return faults.Invariant("chunk_content", "no classified sources in state")
	}
	chunks := make([]types.Chunk, 0, len(state.Sources))
	for _, src := range state.Sources {
		chunks = append(chunks, types.Chunk{SourceID: src.ID, Content: src.Content})
	}
	state.Chunks = chunks
	return nil
}

// IndexChunks embeds each chunk and appends it to the vector index.
// Embeddings run sequentially to bound memory; redelivered messages produce
// duplicate rows, which retrieval tolerates.
type IndexChunks struct {
	deps *Deps
	log  *logger.Logger
}

func NewIndexChunks(deps *Deps) *IndexChunks {
	return &IndexChunks{deps: deps, log: deps.stageLog("index_chunks")}
}

func (s *IndexChunks) Stage() types.Stage { return types.StageIndexChunks }

func (s *IndexChunks) Run(ctx context.Context, state *types.ReportState) error {
	if len(state.Chunks) == 0 {
		return faults.Invariant("index_chunks", "no chunks in state")
	}
	embedded := make([]types.ChunkEmbedding, 0, len(state.Chunks))
	for _, chunk := range state.Chunks {
		emb, err := s.deps.LLM.Embed(ctx, chunk.Content)
		if err != nil {
			return faults.Upstream("index_chunks", err)
		}
		if err := s.deps.Vector.Insert(ctx, state.ID, chunk.SourceID, chunk.Content, emb); err != nil {
			return err
		}
		embedded = append(embedded, types.ChunkEmbedding{
			SourceID:  chunk.SourceID,
			Chunk:     chunk.Content,
			Embedding: emb,
		})
	}
	state.ChunkEmbeddings = embedded
	s.log.Info("Chunks indexed", "report_id", state.ID, "chunks", len(embedded))
	return nil
}

// AnswerQuestions retrieves a bounded context per question and asks the
// model for an answer grounded on it.
type AnswerQuestions struct {
	deps *Deps
	log  *logger.Logger
}

func NewAnswerQuestions(deps *Deps) *AnswerQuestions {
	return &AnswerQuestions{deps: deps, log: deps.stageLog("answer_questions")}
}

func (s *AnswerQuestions) Stage() types.Stage { return types.StageAnswerQuestions }

func (s *AnswerQuestions) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyAnswerQuestions)
	if err != nil {
		return err
	}

	topK := s.deps.AnswerTopK
	if topK <= 0 {
		topK = 8
	}
	budget := s.deps.ContextBudget
	if budget <= 0 {
		budget = 4096
	}

	pairs := make([][][]types.QAPair, len(state.SubSectionQuestions))
	for i, perSection := range state.SubSectionQuestions {
		pairs[i] = make([][]types.QAPair, len(perSection))
		for j, questions := range perSection {
			pairs[i][j] = make([]types.QAPair, 0, len(questions))
			for _, question := range questions {
				queryEmb, err := s.deps.LLM.Embed(ctx, question)
				if err != nil {
					return faults.Upstream("answer_questions", err)
				}
				matches, err := s.deps.Vector.Query(ctx, state.ID, queryEmb, topK)
				if err != nil {
					return err
				}
				context_ := BuildContext(matches, budget)
				if context_ == "" {
					return faults.Invariant("answer_questions", fmt.Sprintf(
						"empty retrieval context for question %q", question))
				}

				answer, result, err := s.deps.Tasks.Raw(ctx, template, map[string]any{
					"context":     context_,
					"title":       state.Title,
					"section":     state.Sections[i],
					"sub_section": state.SubSections[i][j],
					"question":    question,
				}, s.deps.Model)
				state.GenerationResults = append(state.GenerationResults, result)
				if err != nil {
					return err
				}
				pairs[i][j] = append(pairs[i][j], types.QAPair{Question: question, Answer: answer})
			}
		}
	}
	state.QuestionAnswerPairs = pairs
	return nil
}

// BuildContext concatenates retrieved chunks, each framed by START/STOP
// source markers, stopping as soon as the total length reaches the budget.
func BuildContext(matches []vector.Match, budget int) string {
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("# START - Source ID: %s\n", m.SourceID))
		sb.WriteString(m.Chunk)
		sb.WriteString(fmt.Sprintf("\n# STOP - Source ID: %s\n", m.SourceID))
		if sb.Len() >= budget {
			break
		}
	}
	return sb.String()
}

// SectionizeAnswers rewrites each sub-section's Q&A bullets into a coherent
// paragraph.
type SectionizeAnswers struct {
	deps *Deps
	log  *logger.Logger
}

func NewSectionizeAnswers(deps *Deps) *SectionizeAnswers {
	return &SectionizeAnswers{deps: deps, log: deps.stageLog("sectionize_answers")}
}

func (s *SectionizeAnswers) Stage() types.Stage { return types.StageSectionizeAnswers }

func (s *SectionizeAnswers) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySectionizeQuestions)
	if err != nil {
		return err
	}

	contents := make([][]string, len(state.QuestionAnswerPairs))
	for i, perSection := range state.QuestionAnswerPairs {
		contents[i] = make([]string, len(perSection))
		for j, qaPairs := range perSection {
			var block strings.Builder
			for _, qa := range qaPairs {
				block.WriteString("- **Question:** " + qa.Question + "\n")
				block.WriteString("  **Answer:** " + qa.Answer + "\n")
			}
			paragraph, result, err := s.deps.Tasks.Raw(ctx, template, map[string]any{
				"title":       state.Title,
				"section":     state.Sections[i],
				"sub_section": state.SubSections[i][j],
				"questions":   block.String(),
			}, s.deps.Model)
			state.GenerationResults = append(state.GenerationResults, result)
			if err != nil {
				return err
			}
			contents[i][j] = strings.TrimSpace(paragraph)
		}
	}
	state.SubSectionContents = contents
	return nil
}
