package safety

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category Category
		signal   string
	}{
		{name: "cannot go on", text: "I don't think I can go on anymore", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "make them pay", text: "He keeps saying he'll make them pay", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "want to die", text: "sometimes I want to die", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "curly apostrophe", text: "I won’t be a problem much longer", category: CategorySelf, signal: SignalVeiledSelfHarm},
		{name: "giving away", text: "I've been giving away my books and stuff", category: CategorySelf, signal: SignalVeiledSelfHarm},
		{name: "made decision", text: "I made my decision about everything", category: CategorySelf, signal: SignalVeiledSelfHarm},
		{name: "goodbye forever", text: "this is goodbye forever", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "weapon", text: "thinking about bringing a gun to class", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "extra whitespace", text: "i  want\n\tto   die", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "hang myself", text: "I'm going to hang myself tonight", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "shoot myself", text: "I'm going to shoot myself", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "jump off bridge", text: "I want to jump off the bridge", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "slit wrists", text: "thinking about slitting my wrists", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "gun to head", text: "sometimes I want to put a gun to my head", category: CategorySelf, signal: SignalExplicitSelfHarm},
		{name: "second person threat", text: "I'll kill you if you tell anyone", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "named relation", text: "I'm going to kill my roommate", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "first person hurt", text: "I'm gonna hurt him when I see him", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "attack the teacher", text: "someone should attack the professor", category: CategoryOthers, signal: SignalHarmToOthers},
		{name: "academic text", text: "The sample size was small, which limits generalizability.", category: CategoryNone},
		{name: "intervention could hurt", text: "This therapy could hurt people who stutter", category: CategoryNone},
		{name: "treatment hurts someone", text: "Overusing the technique can hurt someone's voice", category: CategoryNone},
		{name: "attack an argument", text: "I want to attack the premise of this study", category: CategoryNone},
		{name: "critics attack her theory", text: "Critics attack her theory of phonation", category: CategoryNone},
		{name: "possessive non person", text: "Skipping the reading will kill my grade", category: CategoryNone},
		{name: "idiom with you", text: "This exam will kill you if you don't study", category: CategoryNone},
		{name: "figure of speech", text: "This exam is killing me but the formants make sense now", category: CategoryNone},
		{name: "empty", text: "", category: CategoryNone},
		{name: "whitespace only", text: "   \n ", category: CategoryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.text)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.category != CategoryNone, res.Detected)
			assert.Equal(t, tt.signal, res.Signal)
		})
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("i want to die"), Classify("I want to DIE"))
}

func TestClassifyOthersTakesPrecedence(t *testing.T) {
	texts := []string{
		"I want to die and I want to kill them",
		"I want to kill them and then I want to die",
		"goodbye forever, I'm going to make everyone pay",
	}
	for _, text := range texts {
		res := Classify(text)
		assert.Equal(t, CategoryOthers, res.Category, text)
	}
}

func TestCustomPatterns(t *testing.T) {
	d := NewDetector([]Pattern{
		{Signal: "fixture", Category: CategorySelf, Expr: regexp.MustCompile(`\bred flag\b`)},
	})

	assert.True(t, d.Classify("That is a RED FLAG").Detected)
	assert.False(t, d.Classify("I want to die").Detected)
}

func TestGateFiresHookOnce(t *testing.T) {
	var got []Incident
	gate := NewGate(nil, func(_ context.Context, in Incident) {
		got = append(got, in)
	})

	res := gate.Check(context.Background(), "I want to kill myself")
	require.True(t, res.Detected)
	require.Len(t, got, 1)
	assert.Equal(t, CategorySelf, got[0].Category)
	assert.Equal(t, SignalExplicitSelfHarm, got[0].Signal)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].DetectedAt.IsZero())

	gate.Check(context.Background(), "The vowel space was larger in clear speech")
	assert.Len(t, got, 1)
}

func TestResponseFor(t *testing.T) {
	assert.Contains(t, ResponseFor(CategorySelf), "988")
	assert.Contains(t, ResponseFor(CategoryOthers), "911")
	assert.Empty(t, ResponseFor(CategoryNone))
}
