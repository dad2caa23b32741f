package optimizer

import (
	"fmt"
	"strings"
)

const inferTaskTemplate = `Your job is to figure out what task an AI prompt is used for. Think step-by-step about the prompt and produce a description of the task it is most likely used for.

Work through it in order:
1. Identify the possible tasks the prompt could serve.
2. Consider the type of input and output the prompt asks for.
3. Describe the single task the prompt is most likely used for.

The task description must be clear and concise, with no unnecessary information.

Respond with a JSON object: {"analysis": "<your step-by-step analysis>", "task": "<the task description>"}

The prompt:

<prompt>
%s
</prompt>`

const proposeTemplate = `You are an expert prompt engineer. You will be given a prompt and your job is to come up with %d better prompts for the following AI task:

<task>
%s
</task>

Each prompt you generate should employ a different strategy to improve the original prompt. Use strategies appropriate for the task: for logic and math, encourage chain-of-thought reasoning; for creative tasks, consider style guidelines or examples.

Your improved prompts must:
- Keep all original input variables.
- Maintain any special formatting or delimiters.
- Be clear and concise.
- Not use complicated language or jargon.

The original prompt:

<prompt>
%s
</prompt>
%s
Respond with a JSON object: {"prompts": ["<prompt 1>", "<prompt 2>", ...]} containing exactly %d distinct prompts, each better than the original.`

const eliteGuidanceHeader = `
These earlier variants have already been scored (0 to 1, higher is better). Learn from what scored well and avoid repeating what scored poorly:

`

const judgeTemplate = `You are an expert prompt engineer. Your job is to evaluate a prompt for the following AI task:

<task>
%s
</task>

Grade the prompt in these categories:
- **Clarity:** Precisely defines the task with unambiguous language.
- **Context:** Provides essential background and purpose of the request.
- **Specificity:** Outlines exact requirements, expected format, and constraints.
- **Guidance:** Breaks complex tasks into clear, sequential steps.
- **Examples:** Includes concrete samples of desired input/output.
- **Role Definition:** Specifies the persona or perspective to adopt.
- **Boundaries:** Sets clear limitations and ethical guidelines.
- **Reasoning:** Requests explanation of logic and self-validation.
- **Flexibility:** Allows space for creative interpretation.
- **Structure:** Defines preferred output format and presentation.

Your final score must be a number between 1 and 10, with 10 being the highest.

Respond with a JSON object: {"evaluation": "<justification for your score>", "score": <number between 1 and 10>}

The prompt to evaluate:

<prompt>
%s
</prompt>`

func buildInferTaskPrompt(originalPrompt string) string {
	return fmt.Sprintf(inferTaskTemplate, originalPrompt)
}

func buildProposePrompt(task TaskContext, elites []*Candidate, count int) string {
	var guidance string
	if len(elites) > 0 {
		var b strings.Builder
		b.WriteString(eliteGuidanceHeader)
		for i, e := range elites {
			fmt.Fprintf(&b, "<variant_%d score=%.2f>\n%s\n</variant_%d>\n\n", i+1, e.Score, e.Text, i+1)
		}
		guidance = b.String()
	}
	return fmt.Sprintf(proposeTemplate, count, task.TaskDescription, task.OriginalPrompt, guidance, count)
}

func buildJudgePrompt(task TaskContext, candidateText string) string {
	return fmt.Sprintf(judgeTemplate, task.TaskDescription, candidateText)
}
