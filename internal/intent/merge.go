package intent

// Merge combines a rule verdict and a model verdict for the same query into
// one intent. The rule verdict anchors the result: the model only overrides
// the kind when it is strictly more confident, and only supplies the tool
// when the rule's confidence is too low to trust its table hit.
func Merge(rule, model Intent) Intent {
	merged := Intent{
		Kind:     rule.Kind,
		RawQuery: rule.RawQuery,
	}
	if model.Confidence > rule.Confidence {
		merged.Kind = model.Kind
	}

	merged.Confidence = rule.Confidence
	if model.Confidence > merged.Confidence {
		merged.Confidence = model.Confidence
	}

	switch {
	case rule.ToolName != "" && model.ToolName != "":
		if rule.Confidence > 0.7 {
			merged.ToolName = rule.ToolName
		} else {
			merged.ToolName = model.ToolName
		}
	case rule.ToolName != "":
		merged.ToolName = rule.ToolName
	default:
		merged.ToolName = model.ToolName
	}

	merged.Entities = mergeEntities(rule.Entities, model.Entities)
	return merged
}

// mergeEntities unions two entity lists, de-duplicating on the exact
// (type, value) pair and keeping the higher confidence of any duplicate.
// Rule entities keep their original order ahead of model-only entities.
func mergeEntities(rule, model []Entity) []Entity {
	if len(rule) == 0 && len(model) == 0 {
		return nil
	}

	out := make([]Entity, 0, len(rule)+len(model))
	seen := make(map[string]int, len(rule)+len(model))

	add := func(e Entity) {
		key := e.Type + ":" + e.Value
		if i, ok := seen[key]; ok {
			if e.Confidence > out[i].Confidence {
				out[i].Confidence = e.Confidence
			}
			return
		}
		seen[key] = len(out)
		out = append(out, e)
	}

	for _, e := range rule {
		add(e)
	}
	for _, e := range model {
		add(e)
	}
	return out
}
