package outline

import "fmt"

// Template はアシスタントへの依頼の種類
type Template string

const (
	TemplateOutline     Template = "outline"
	TemplateExpandTopic Template = "expand-topic"
)

const outlineInstructions = `
Generate a concise, well-structured outline for an engineering portfolio entry based on the repository.
Format the outline as follows:
1. Start with a clear title and brief overview (2-3 sentences)
2. Organize into 5-7 main sections with clear headings (use ### for main headings)
3. Use bullet points for subsections (use - for bullets)
4. Include specific technical details relevant to the repository
5. Add proper spacing between sections using a blank line
6. End with potential discussion points about challenges and solutions

Focus on the core technologies, architecture, and unique features of the project.
Keep descriptions brief but informative - aim for clarity over comprehensiveness.
`

const expandTopicInstructions = `
Expand a single section of an engineering portfolio outline using the repository files attached to you.
Format the answer as follows:
1. The first line must be "SECTION_TITLE: <short section title>"
2. Follow with 2-4 short paragraphs or bullet lists (use - for bullets)
3. Reference concrete files, modules, and technologies from the repository
4. Keep code snippets short and only include them when they clarify the design

Do not repeat the full outline. Stay within the scope of the requested section.
`

// OutlinePrompt はアウトライン生成のユーザーメッセージを返す
func OutlinePrompt(repositoryName string) string {
	return fmt.Sprintf("Generate an outline for the repository: %s that is in the vector store attached to you", repositoryName)
}

// ExpandTopicPrompt はトピック展開のユーザーメッセージを返す
func ExpandTopicPrompt(repositoryName, topic string) string {
	return fmt.Sprintf("Expand the following section of the outline for the repository: %s that is in the vector store attached to you.\n\n%s", repositoryName, topic)
}

// Instructions はテンプレートに対応する実行時の指示を返す
func Instructions(t Template) string {
	switch t {
	case TemplateExpandTopic:
		return expandTopicInstructions
	default:
		return outlineInstructions
	}
}
