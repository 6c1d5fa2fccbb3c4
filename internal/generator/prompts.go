package generator

import (
	"fmt"
	"strings"

	"docagent/internal/endpoint"
)

// PromptBuilder constructs the prompts sent to the model.
type PromptBuilder struct{}

const (
	writerSystemPrompt = "You are an expert technical writer specializing in API documentation. " +
		"Write clear, accurate Markdown for a single endpoint. Describe every parameter, give realistic " +
		"examples and keep a consistent structure across endpoints."

	reviewerSystemPrompt = "You are a strict QA reviewer for API documentation."

	securityInstruction = "\n**SECURITY WARNING**: Never invent credentials. Use `<token>` placeholders for any API keys or secrets in examples.\n"

	formatInstruction = "\nStart with a level-3 heading `### METHOD /path`. Do not wrap the answer in a code fence and do not emit HTML comments.\n"
)

// DescribeEndpoint renders the facts about an endpoint the model must respect.
func (pb *PromptBuilder) DescribeEndpoint(sig endpoint.Signature) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Endpoint**: %s %s\n", strings.ToUpper(sig.Method), sig.Path)
	if sig.Function != "" {
		fmt.Fprintf(&sb, "**Function**: %s\n", sig.Function)
	}
	fmt.Fprintf(&sb, "**Summary**: %s\n", orNotProvided(sig.Summary))
	fmt.Fprintf(&sb, "**Description**: %s\n", orNotProvided(sig.Description))
	if len(sig.Tags) > 0 {
		fmt.Fprintf(&sb, "**Tags**: %s\n", strings.Join(sig.Tags, ", "))
	} else {
		sb.WriteString("**Tags**: None\n")
	}
	status := sig.StatusCode
	if status == 0 {
		status = endpoint.DefaultStatusCode
	}
	fmt.Fprintf(&sb, "**Status Code**: %d\n", status)

	if len(sig.Parameters) > 0 {
		sb.WriteString("\n**Parameters**:\n")
		for _, p := range sig.Parameters {
			fmt.Fprintf(&sb, "  - `%s` (%s): %s", p.Name, p.Location, p.Type)
			if !p.Required {
				def := "None"
				if p.Default != nil {
					def = *p.Default
				}
				fmt.Fprintf(&sb, " [Optional, default: %s]", def)
			}
			sb.WriteString("\n")
		}
	}
	if sig.RequestModel != "" {
		fmt.Fprintf(&sb, "\n**Request Model**: %s\n", sig.RequestModel)
	}
	if sig.ResponseModel != "" {
		fmt.Fprintf(&sb, "**Response Model**: %s\n", sig.ResponseModel)
	}
	return sb.String()
}

// BuildEndpointPrompt asks for a fresh section, or for a refresh of existing
// documentation when req.Existing is set.
func (pb *PromptBuilder) BuildEndpointPrompt(req Request) string {
	var sb strings.Builder
	project := req.Project
	if project == "" {
		project = "API"
	}

	if strings.TrimSpace(req.Existing) == "" {
		fmt.Fprintf(&sb, "Create documentation for this endpoint of the %q project.\n\n", project)
		sb.WriteString(pb.DescribeEndpoint(req.Signature))
		sb.WriteString("\nInclude:\n")
		sb.WriteString("- Endpoint description and purpose\n")
		sb.WriteString("- All parameters with descriptions\n")
		sb.WriteString("- Request/response examples, including a curl example\n")
		sb.WriteString("- Possible error responses\n")
		sb.WriteString("- Usage notes if applicable\n")
	} else {
		fmt.Fprintf(&sb, "Update the existing documentation for this endpoint of the %q project based on the current code.\n\n", project)
		sb.WriteString("**Current Endpoint Information**:\n")
		sb.WriteString(pb.DescribeEndpoint(req.Signature))
		sb.WriteString("\n**Existing Documentation**:\n")
		sb.WriteString(req.Existing)
		sb.WriteString("\n\nReflect every change while keeping the overall style and structure.\n")
		sb.WriteString("Preserve content that is still accurate. Update examples if parameters or models changed.\n")
		sb.WriteString("Return the complete updated section.\n")
	}
	sb.WriteString(formatInstruction)
	sb.WriteString(securityInstruction)
	return sb.String()
}

// BuildCritiquePrompt asks the model to check a draft against the endpoint.
func (pb *PromptBuilder) BuildCritiquePrompt(sig endpoint.Signature, draft string) string {
	var sb strings.Builder
	sb.WriteString("Check the generated documentation against the actual endpoint definition.\n\n")
	sb.WriteString("**Actual Code Analysis (Truth)**:\n")
	sb.WriteString(pb.DescribeEndpoint(sig))
	sb.WriteString("\n**Generated Documentation**:\n")
	sb.WriteString(draft)
	sb.WriteString("\n\nReview for:\n")
	sb.WriteString("1. **Accuracy**: Are the method and path correct?\n")
	sb.WriteString("2. **Correctness**: Do parameters and types match exactly?\n")
	sb.WriteString("3. **Missing Info**: Are required parameters marked optional or vice versa?\n\n")
	sb.WriteString("If the documentation is accurate, respond with ONLY: \"STATUS: PASS\"\n")
	sb.WriteString("Otherwise respond with \"STATUS: FAIL\" followed by the list of issues.\n")
	return sb.String()
}

// BuildRefinePrompt asks for a corrected draft given a critique.
func (pb *PromptBuilder) BuildRefinePrompt(sig endpoint.Signature, draft, critique string) string {
	var sb strings.Builder
	sb.WriteString("Fix the API documentation based on a review.\n\n")
	sb.WriteString("**Actual Code Analysis**:\n")
	sb.WriteString(pb.DescribeEndpoint(sig))
	sb.WriteString("\n**Current Draft**:\n")
	sb.WriteString(draft)
	sb.WriteString("\n\n**Critique (Issues to Fix)**:\n")
	sb.WriteString(critique)
	sb.WriteString("\n\nRewrite the section to address every issue. Return the complete corrected section.\n")
	sb.WriteString(formatInstruction)
	return sb.String()
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not provided"
	}
	return s
}
