package render

import "runtime"

// spinnerVerbs is the playful vocabulary shown next to the animation glyph
// while the assistant is thinking and hasn't produced any content yet.
var spinnerVerbs = []string{
	"Accomplishing", "Actioning", "Actualizing", "Baking", "Booping",
	"Brewing", "Calculating", "Cerebrating", "Channelling", "Churning",
	"Cogitating", "Combobulating", "Computing", "Concocting", "Conjuring",
	"Considering", "Cooking", "Crafting", "Creating", "Crunching",
	"Deliberating", "Determining", "Divining", "Doing", "Effecting",
	"Elucidating", "Envisioning", "Finagling", "Forging", "Forming",
	"Generating", "Hatching", "Herding", "Honking", "Ideating",
	"Imagining", "Incubating", "Inferring", "Manifesting", "Marinating",
	"Mulling", "Mustering", "Noodling", "Percolating", "Pondering",
	"Processing", "Puzzling", "Reticulating", "Ruminating", "Scheming",
	"Simmering", "Spinning", "Stewing", "Synthesizing", "Thinking",
	"Tinkering", "Transmuting", "Unfurling", "Vibing", "Working",
}

// buildSpinnerFrames appends the reversed inner frames of whichever base set
// applies, so the animation ping-pongs rather than jumping back to frame zero.
var darwinSpinnerFrames = []string{"·", "✢", "✳", "∗", "✻", "✽"}
var fallbackSpinnerFrames = []string{"·", "✢", "*", "∗", "✻", "✽"}

var spinnerFrameSet = buildSpinnerFrames()

func buildSpinnerFrames() []string {
	base := fallbackSpinnerFrames
	if runtime.GOOS == "darwin" {
		base = darwinSpinnerFrames
	}
	frames := make([]string, 0, len(base)*2-2)
	frames = append(frames, base...)
	for i := len(base) - 2; i > 0; i-- {
		frames = append(frames, base[i])
	}
	return frames
}

// ticksPerGlyph/ticksPerVerb convert the 100ms session tick cadence into the
// two speeds the teacher's spinner ran at: a fast glyph blink (~120ms) and a
// slower verb rotation (~600ms).
const ticksPerGlyph = 1
const ticksPerVerb = 6

// SpinnerGlyph returns the animation frame for the given session tick.
func SpinnerGlyph(tick uint64) string {
	idx := (tick / ticksPerGlyph) % uint64(len(spinnerFrameSet))
	return spinnerFrameSet[idx]
}

// SpinnerVerb returns the "thinking" verb for the given session tick,
// rotating slower than the glyph so a word is readable before it changes.
func SpinnerVerb(tick uint64) string {
	idx := (tick / ticksPerVerb) % uint64(len(spinnerVerbs))
	return spinnerVerbs[idx]
}
