// Package coverage tracks which rubric areas a conversation has touched.
// Coverage only ever grows: every combination is a boolean OR.
package coverage

import "regexp"

type Area string

const (
	AreaArticleEngagement      Area = "article_engagement"
	AreaEvidenceBasedReasoning Area = "evidence_based_reasoning"
	AreaCriticalThinking       Area = "critical_thinking"
	AreaClinicalConnection     Area = "clinical_connection"
	AreaReflection             Area = "reflection"
)

// AreaCoverage is the running record for one conversation.
type AreaCoverage struct {
	ArticleEngagement      bool `json:"articleEngagement"`
	EvidenceBasedReasoning bool `json:"evidenceBasedReasoning"`
	CriticalThinking       bool `json:"criticalThinking"`
	ClinicalConnection     bool `json:"clinicalConnection"`
	Reflection             bool `json:"reflection"`
}

// Detected is what text detection can establish. Reflection is absent:
// it is only set by an explicit submission.
type Detected struct {
	ArticleEngagement      bool `json:"articleEngagement"`
	EvidenceBasedReasoning bool `json:"evidenceBasedReasoning"`
	CriticalThinking       bool `json:"criticalThinking"`
	ClinicalConnection     bool `json:"clinicalConnection"`
}

var (
	articleExpr  = regexp.MustCompile(`(?i)\b(stud(y|ies|ied)|method(s|ology)?|participants?|subjects?|findings?|found\s+that|authors?|researchers?|hypothes(is|es|ized)|article|paper|experiment(s|al)?|results?)\b`)
	evidenceExpr = regexp.MustCompile(`(?i)(\b(data|statistic(s|al|ally)?|percent(age)?|significan(t|tly|ce)|correlat(e|ed|es|ion|ions)|mean|average|effect\s+sizes?|scores?|evidence|p\s*[<=]\s*0?\.\d+|measured|measurements?)\b|\d+(\.\d+)?\s*%)`)
	criticalExpr = regexp.MustCompile(`(?i)\b(limitations?|limits?|limited|confound(s|ed|ing)?|bias(es|ed)?|validity|valid|reliab(le|ility)|sample\s+size|generaliz(e|able|ability|ation)|generalis(e|able|ability|ation)|flaws?|flawed|weakness(es)?|caveats?|alternative\s+explanations?)\b`)
	clinicalExpr = regexp.MustCompile(`(?i)\b(clinic(s|al|ally|ian|ians)?|patients?|clients?|therap(y|ies|ist|ists|eutic)|treatments?|practice|interventions?|assessments?|slps?|speech[-\s]language\s+patholog(y|ist|ists)|caseload|diagnos(is|e|tic))\b`)
)

// DetectAreas scans the full conversation text so far.
func DetectAreas(text string) Detected {
	return Detected{
		ArticleEngagement:      articleExpr.MatchString(text),
		EvidenceBasedReasoning: evidenceExpr.MatchString(text),
		CriticalThinking:       criticalExpr.MatchString(text),
		ClinicalConnection:     clinicalExpr.MatchString(text),
	}
}

// Merge ORs fresh detection into the running record.
func Merge(old AreaCoverage, fresh Detected) AreaCoverage {
	return AreaCoverage{
		ArticleEngagement:      old.ArticleEngagement || fresh.ArticleEngagement,
		EvidenceBasedReasoning: old.EvidenceBasedReasoning || fresh.EvidenceBasedReasoning,
		CriticalThinking:       old.CriticalThinking || fresh.CriticalThinking,
		ClinicalConnection:     old.ClinicalConnection || fresh.ClinicalConnection,
		Reflection:             old.Reflection,
	}
}

func WithReflection(old AreaCoverage) AreaCoverage {
	old.Reflection = true
	return old
}

// Union combines two stored records, e.g. a cached session and its
// persisted snapshot.
func Union(a, b AreaCoverage) AreaCoverage {
	return AreaCoverage{
		ArticleEngagement:      a.ArticleEngagement || b.ArticleEngagement,
		EvidenceBasedReasoning: a.EvidenceBasedReasoning || b.EvidenceBasedReasoning,
		CriticalThinking:       a.CriticalThinking || b.CriticalThinking,
		ClinicalConnection:     a.ClinicalConnection || b.ClinicalConnection,
		Reflection:             a.Reflection || b.Reflection,
	}
}

func (c AreaCoverage) Areas() map[Area]bool {
	return map[Area]bool{
		AreaArticleEngagement:      c.ArticleEngagement,
		AreaEvidenceBasedReasoning: c.EvidenceBasedReasoning,
		AreaCriticalThinking:       c.CriticalThinking,
		AreaClinicalConnection:     c.ClinicalConnection,
		AreaReflection:             c.Reflection,
	}
}

func (c AreaCoverage) Count() int {
	n := 0
	for _, covered := range c.Areas() {
		if covered {
			n++
		}
	}
	return n
}

// ReadyToSubmit is the soft gate shown before submission: reflection is
// required and at least minAreas areas in total must be covered.
func (c AreaCoverage) ReadyToSubmit(minAreas int) bool {
	return c.Reflection && c.Count() >= minAreas
}

var order = []Area{
	AreaArticleEngagement,
	AreaEvidenceBasedReasoning,
	AreaCriticalThinking,
	AreaClinicalConnection,
	AreaReflection,
}

// Newly lists areas covered in merged but not in old, in rubric order.
func Newly(old, merged AreaCoverage) []Area {
	before, after := old.Areas(), merged.Areas()
	var out []Area
	for _, a := range order {
		if after[a] && !before[a] {
			out = append(out, a)
		}
	}
	return out
}
