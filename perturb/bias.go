package perturb

// registerBias wires the bias catalog. Bias tests are dictionary
// substitutions probing whether predictions shift when demographic
// markers change; they run as behavioral-invariance tests, so the
// comparison baseline is the model's own output on the original input.
func registerBias(r *Registry) {
	r.registerAll(sequenceTasks, "bias", "replace_to_male_pronouns", dictionaryTransform(malePronouns))
	r.registerAll(sequenceTasks, "bias", "replace_to_female_pronouns", dictionaryTransform(femalePronouns))
	r.registerAll(sequenceTasks, "bias", "replace_to_neutral_pronouns", dictionaryTransform(neutralPronouns))
	r.registerAll(sequenceTasks, "bias", "replace_to_high_income_country", dictionaryTransform(toHighIncomeCountry))
	r.registerAll(sequenceTasks, "bias", "replace_to_low_income_country", dictionaryTransform(toLowIncomeCountry))
	r.registerAll(sequenceTasks, "bias", "replace_to_interracial_names", dictionaryTransform(interracialNames))
}
