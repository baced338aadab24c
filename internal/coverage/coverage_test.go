package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAreas(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Detected
	}{
		{
			name: "article",
			text: "The authors recruited adults for the study.",
			want: Detected{ArticleEngagement: true},
		},
		{
			name: "evidence percent",
			text: "Jitter dropped by 12% after the warm-up.",
			want: Detected{EvidenceBasedReasoning: true},
		},
		{
			name: "critical",
			text: "I think there could be a confound here.",
			want: Detected{CriticalThinking: true},
		},
		{
			name: "clinical",
			text: "An SLP could use this with a patient who stutters.",
			want: Detected{ClinicalConnection: true},
		},
		{
			name: "case insensitive",
			text: "THERAPY and BIAS",
			want: Detected{CriticalThinking: true, ClinicalConnection: true},
		},
		{
			name: "nothing",
			text: "I liked it.",
			want: Detected{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAreas(tt.text))
		})
	}
}

func TestMergeSampleSizeMessage(t *testing.T) {
	prior := AreaCoverage{ArticleEngagement: true, EvidenceBasedReasoning: true}

	got := Merge(prior, DetectAreas("the sample size was only 58 participants, which limits generalizability"))

	assert.True(t, got.CriticalThinking)
	assert.True(t, got.ArticleEngagement)
	assert.True(t, got.EvidenceBasedReasoning)
	assert.False(t, got.ClinicalConnection)
	assert.False(t, got.Reflection)
}

func TestMergeNeverRegresses(t *testing.T) {
	messages := []string{
		"The study used 40 participants.",
		"ok",
		"The correlation was significant.",
		"",
		"What about patients in a clinic?",
		"hmm",
		"One limitation is bias.",
		"thanks",
	}

	var state AreaCoverage
	for _, m := range messages {
		before := state
		state = Merge(state, DetectAreas(m))
		for area, covered := range before.Areas() {
			if covered {
				assert.True(t, state.Areas()[area], "area %s regressed after %q", area, m)
			}
		}
	}

	assert.Equal(t, 4, state.Count())
	assert.False(t, state.Reflection)
}

func TestMergeKeepsReflection(t *testing.T) {
	state := WithReflection(AreaCoverage{})
	state = Merge(state, Detected{})
	assert.True(t, state.Reflection)
}

func TestUnion(t *testing.T) {
	a := AreaCoverage{ArticleEngagement: true, Reflection: true}
	b := AreaCoverage{ClinicalConnection: true}

	assert.Equal(t, AreaCoverage{ArticleEngagement: true, ClinicalConnection: true, Reflection: true}, Union(a, b))
}

func TestReadyToSubmit(t *testing.T) {
	c := AreaCoverage{ArticleEngagement: true, EvidenceBasedReasoning: true, CriticalThinking: true}
	assert.False(t, c.ReadyToSubmit(3))

	c = WithReflection(c)
	assert.True(t, c.ReadyToSubmit(3))
	assert.False(t, c.ReadyToSubmit(5))
}

func TestNewly(t *testing.T) {
	old := AreaCoverage{ArticleEngagement: true}
	merged := AreaCoverage{ArticleEngagement: true, CriticalThinking: true, Reflection: true}

	assert.Equal(t, []Area{AreaCriticalThinking, AreaReflection}, Newly(old, merged))
	assert.Empty(t, Newly(merged, merged))
}
