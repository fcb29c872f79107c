package llm

const linkSystemPrompt = `You are a senior customer research analyst. You map interview evidence onto a two-tier research plan: decision questions (strategic) and research questions (tactical, each under one decision question). Evidence may only be linked to research questions. Respond with a single valid JSON object and nothing else.`

const linkUserPrompt = `Research questions and their decision questions:
%s

Evidence:
%s

Additional instructions:
%s

For every evidence item, list the research questions it bears on. For each link give the relationship ("supports", "refutes" or "neutral"), a confidence between 0.0 and 1.0, a one-sentence answer_summary, a rationale, and optional next_steps.
Then answer each research question from the evidence as a whole, and roll those findings up into each decision question.

Return a valid JSON object:
{"evidence_results": [{"evidence_id": "<id>", "links": [{"question_id": "<research question id>", "question_kind": "research", "decision_question_id": "<parent id>", "relationship": "supports", "confidence": 0.0, "answer_summary": "", "rationale": "", "next_steps": ""}]}],
 "research_question_answers": [{"research_question_id": "<id>", "findings": [""], "evidence_ids": [""], "confidence": 0.0, "reasoning": ""}],
 "decision_question_answers": [{"decision_question_id": "<id>", "strategic_insight": "", "supporting_findings": [""], "research_question_ids": [""], "recommended_actions": [""], "confidence": 0.0, "reasoning": ""}],
 "global_goal_summary": "",
 "recommended_actions": [""]}`

// lensSystemPrompt is shared by every per-interview extraction so providers
// can cache it.
const lensSystemPrompt = `You are an expert conversation analyst. You read the evidence captured from one customer conversation and fill a structured analysis template. Cite evidence by id in every evidence_ids array and never invent ids. Use empty strings and empty arrays when the conversation says nothing. Respond with a single valid JSON object and nothing else.`

const salesBANTPrompt = `Template: %s

Interview context:
%s

Evidence:
%s

Additional instructions:
%s

Qualify this sales conversation with BANT. Score each dimension from 0.0 to 1.0 by how clearly the conversation establishes it. List stakeholders, objections and agreed next steps.

Return a valid JSON object:
{"budget": {"summary": "", "score": 0.0, "evidence_ids": []},
 "authority": {"summary": "", "score": 0.0, "evidence_ids": []},
 "need": {"summary": "", "score": 0.0, "evidence_ids": []},
 "timeline": {"summary": "", "score": 0.0, "evidence_ids": []},
 "stakeholders": [{"name": "", "role": "", "influence": "", "evidence_ids": []}],
 "objections": [{"description": "", "status": "open", "evidence_ids": []}],
 "next_steps": [{"description": "", "owner": "", "due_date": "", "priority": "medium", "evidence_ids": []}],
 "deal_summary": "",
 "recommendations": [{"type": "", "description": "", "priority": "", "evidence_ids": []}]}`

const customerDiscoveryPrompt = `Template: %s

Interview context:
%s

Evidence:
%s

Additional instructions:
%s

Analyze this discovery conversation. Capture the problem in the customer's words, the pains and how they cope today, the jobs they are hiring a product for, any willingness-to-pay signals and the personas involved. goal_completion_score is how fully the conversation answered the discovery goals, from 0.0 to 1.0.

Return a valid JSON object:
{"problem_statement": "",
 "pains": [{"description": "", "severity": "", "frequency": "", "evidence_ids": []}],
 "current_solutions": [{"name": "", "description": "", "evidence_ids": []}],
 "jobs_to_be_done": [{"description": "", "evidence_ids": []}],
 "willingness_to_pay": {"summary": "", "score": 0.0, "evidence_ids": []},
 "personas": [{"name": "", "role": "", "description": ""}],
 "goal_completion_score": 0.0,
 "recommendations": [{"type": "", "description": "", "priority": "", "evidence_ids": []}]}`

const productInsightsPrompt = `Template: %s

Interview context:
%s

Evidence:
%s

Additional instructions:
%s

Pull product insights out of this conversation: requested features, usability problems, competitors mentioned, and the few insights a product team should act on first.

Return a valid JSON object:
{"feature_requests": [{"name": "", "description": "", "priority": "", "evidence_ids": []}],
 "usability_issues": [{"description": "", "severity": "", "evidence_ids": []}],
 "competitive_mentions": [{"name": "", "description": "", "evidence_ids": []}],
 "top_insights": [""],
 "overall_confidence": 0.0,
 "recommendations": [{"type": "", "description": "", "priority": "", "evidence_ids": []}]}`

const projectQAPrompt = `Project research questions:
%s

Interview context:
%s

Evidence:
%s

Additional instructions:
%s

Answer each research question from this conversation only. status is "answered" when the evidence settles it, "partial" when it only hints at an answer, and "unanswered" when the conversation says nothing. goal_completion_score is the share of questions this conversation answered, from 0.0 to 1.0.

Return a valid JSON object:
{"answers": [{"question_id": "<id>", "question": "", "answer": "", "status": "answered", "confidence": 0.0, "evidence_ids": []}],
 "open_questions": [""],
 "goal_completion_score": 0.0,
 "recommendations": [{"type": "", "description": "", "priority": "", "evidence_ids": []}]}`

const conversationLensPrompt = `Template: %s
Template definition:
%s

Interview context:
%s

Evidence:
%s

Additional instructions:
%s

Fill every section and field of the template definition from this conversation. Use the section and field keys from the definition. Group extracted entities by type.

Return a valid JSON object:
{"sections": [{"section_key": "", "fields": [{"field_key": "", "value": "", "confidence": 0.0, "evidence_ids": []}]}],
 "entities": {"<entity_type>": [{"name": "", "description": "", "role": "", "evidence_ids": []}]},
 "recommendations": [{"type": "", "description": "", "priority": "", "evidence_ids": []}],
 "hygiene": [""],
 "overall_confidence": 0.0}`

const synthesisSystemPrompt = `You are a research lead synthesizing findings across many customer conversations. Identify patterns that recur across interviews, call out where interviews disagree, and keep every statement grounded in the analyses you are given. Respond with a single valid JSON object and nothing else.`

const lensSynthesisPrompt = `Lens: %s
Lens definition:
%s

Per-interview analyses (%d):
%s

Additional instructions:
%s

Synthesize these analyses into a project-level view of this lens.

Return a valid JSON object:
{"executive_summary": "",
 "key_takeaways": [""],
 "recommendations": [""],
 "conflicts_to_review": [""],
 "overall_confidence": 0.0}`

const crossLensSynthesisPrompt = `Project: %s
%s

Per-lens summaries:
%s

Per-interview analyses across all lenses (%d):
%s

Additional instructions:
%s

Combine every lens into one project-level briefing. Key findings must hold across lenses; risks are contradictions or gaps that need follow-up.

Return a valid JSON object:
{"executive_summary": "",
 "key_findings": [""],
 "recommended_actions": [""],
 "risks": [""],
 "overall_confidence": 0.0}`
