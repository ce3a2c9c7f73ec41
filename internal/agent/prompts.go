package agent

import "fmt"

// ragSystemPrompt instructs the model to stay inside the retrieved context.
const ragSystemPrompt = `You are a concise technical assistant for a local knowledge base of documents and source code.
Answer only from the provided context. If the context does not contain the answer, say so.
Be short and clear, use structured prose, no embellishment.
Always answer in %s.`

// toolSelectPrompt lists the tools and the wire format of a tool call.
const toolSelectPrompt = `You can call the following tools:

%s

If one of the tools can answer the question, respond with exactly one JSON object and nothing else:
{"action": "<tool name>", "arguments": {"<parameter>": "<value>"}}

Example. Question: "What are the open issues in octocat/hello-world?"
Response: {"action": "list_open_issues", "arguments": {"repo_name": "octocat/hello-world"}}

If no tool applies, answer in plain prose. Do not use markdown, code fences or any other formatting.`

// toolAnswerPrompt embeds a formatted tool result for the second call.
const toolAnswerPrompt = `A tool was called to answer the user's question. Its result:

%s

Answer the question based only on this result. Be short and clear. Always answer in %s.`

func ragSystem(language string) string {
	return fmt.Sprintf(ragSystemPrompt, language)
}

func ragUser(context, question string) string {
	return "Context:\n" + context + "\n\nQuestion: " + question
}

func toolSelectSystem(catalog string) string {
	return fmt.Sprintf(toolSelectPrompt, catalog)
}

func toolAnswerSystem(result, language string) string {
	return fmt.Sprintf(toolAnswerPrompt, result, language)
}
