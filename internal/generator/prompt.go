package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-qa/internal/selector"
)

// HistorySize is the number of earlier questions quoted in a prompt.
const HistorySize = 3

const analystPreamble = "You are an expert financial data analyst with these capabilities:\n" +
	"- Deep understanding of transaction patterns and user financial behavior\n" +
	"- Trend analysis and anomaly detection\n" +
	"- Strategic financial insights and personalized recommendations\n" +
	"- Clear explanation of complex financial patterns\n\n"

const answerStructure = "Provide a detailed analysis following this structure:\n\n" +
	"1. Direct Answer\n" +
	"   - Clear, specific response to the question\n" +
	"   - Include relevant numbers and statistics\n" +
	"   - Highlight key findings\n\n" +
	"2. Key Insights\n" +
	"   - Notable patterns or trends\n" +
	"   - Unusual activities or anomalies\n" +
	"   - Comparative analysis (e.g., month-over-month, weekday vs weekend)\n\n" +
	"3. Important Considerations\n" +
	"   - Data limitations or caveats\n" +
	"   - Missing or incomplete information\n" +
	"   - Potential areas needing attention\n\n" +
	"4. Actionable Recommendations\n" +
	"   - Specific suggestions based on the analysis\n" +
	"   - Steps to improve financial patterns\n" +
	"   - Areas for potential optimization\n\n" +
	"Use clear formatting with bullet points and sections. Include specific numbers and percentages where relevant.\n" +
	"Amounts are in INR; positive amounts are credits and negative amounts are debits.\n" +
	"Explain any financial terms in simple language.\n"

// BuildPrompt renders the payload as the instruction sent to the model.
func BuildPrompt(p selector.Payload) (string, error) {
	ctxJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal context: %w", err)
	}

	var b strings.Builder
	b.WriteString(analystPreamble)
	b.WriteString("Analyze this transaction data context:\n```json\n")
	b.Write(ctxJSON)
	b.WriteString("\n```\n\n")
	b.WriteString(QuestionLine(p.Question, p.PreviousQuestions))
	b.WriteString("\n\n")
	b.WriteString(answerStructure)
	return b.String(), nil
}

// QuestionLine renders the question, preceded by up to HistorySize earlier
// questions when there are any.
func QuestionLine(question string, previous []string) string {
	if len(previous) == 0 {
		return fmt.Sprintf("Question: %q", question)
	}
	if len(previous) > HistorySize {
		previous = previous[len(previous)-HistorySize:]
	}
	return fmt.Sprintf("Previously asked about: %s\nNew question: %q", strings.Join(previous, ", "), question)
}
