package sample

// AlignSpans maps entity spans from original-text coordinates into
// perturbed-text coordinates using the transformations the perturbation
// recorded.
//
// Spans that fall entirely before a rewrite keep their offsets; spans
// after it shift by the length delta; a span that is itself the
// rewritten region takes the new span's boundaries and surface form.
// Spans overlapping an ignored transformation (added context, trailing
// punctuation) are shifted but otherwise untouched.
//
// Offsets are character positions. Transformations must be ordered by
// OriginalSpan.Start and non-overlapping, which is what the perturbation
// catalog produces.
func AlignSpans(spans []Span, transformations []Transformation) []Span {
	if len(transformations) == 0 || len(spans) == 0 {
		return append([]Span(nil), spans...)
	}

	aligned := make([]Span, 0, len(spans))
	for _, sp := range spans {
		aligned = append(aligned, alignOne(sp, transformations))
	}
	return aligned
}

func alignOne(sp Span, transformations []Transformation) Span {
	delta := 0
	for _, tr := range transformations {
		orig, repl := tr.OriginalSpan, tr.NewSpan
		switch {
		case orig.End <= sp.Start:
			// Rewrite entirely before the span: accumulate the shift.
			delta += (repl.End - repl.Start) - (orig.End - orig.Start)
		case !tr.Ignore && orig.Start == sp.Start && orig.End == sp.End:
			// The span is exactly the rewritten region: adopt the
			// replacement boundaries, shifted by everything before it.
			return Span{Start: repl.Start, End: repl.End, Word: repl.Word}
		case !tr.Ignore && orig.Start < sp.End && sp.Start < orig.End:
			// Partial overlap with a real rewrite: stretch the span end
			// by the delta so the label still covers the replacement.
			d := (repl.End - repl.Start) - (orig.End - orig.Start)
			return Span{Start: sp.Start + delta, End: sp.End + delta + d, Word: sp.Word}
		default:
			// Rewrite after the span, or an ignored insertion that only
			// affects text outside it.
		}
	}
	return sp.Shift(delta)
}

// AlignOutput realigns every prediction span in a NER output. Used by
// evaluators to move dataset-label spans into perturbed-text space
// before comparing against the model's predictions.
func AlignOutput(out NEROutput, transformations []Transformation) NEROutput {
	if len(transformations) == 0 {
		return out
	}
	preds := make([]NERPrediction, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		preds = append(preds, NERPrediction{Label: p.Label, Span: alignOne(p.Span, transformations)})
	}
	return NEROutput{Predictions: preds}
}
