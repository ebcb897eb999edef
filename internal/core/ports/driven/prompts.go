package driven

// PromptStore provides access to LLM prompt templates.
// Templates use text/template syntax.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error; known names fall back to a default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptRAGAnswer answers a question from retrieved context.
	// Fields: .Question, .Language, .Sources (each with .Index, .Document, .Page, .Text).
	PromptRAGAnswer = "rag_answer"

	// PromptRAGNoContext answers when no context could be retrieved.
	// Fields: .Question, .Language.
	PromptRAGNoContext = "rag_no_context"

	// PromptSummarise asks for a structured synopsis of a document.
	// Fields: .Name, .Type, .Language, .Text.
	PromptSummarise = "summarise"
)
