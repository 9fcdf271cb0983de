package schema

// Default returns the declaration of the body performance dataset that
// sqlfence ships with. Deployments override it in sqlfence.yaml.
func Default() Config {
	return Config{
		Database: "default",
		Table:    "bodyPerformance",
		Columns: []string{
			"age",
			"gender",
			"height_cm",
			"weight_kg",
			"body_fat_pct",
			"diastolic",
			"systolic",
			"grip_force",
			"sit_and_bend_forward_cm",
			"situps_count",
			"broad_jump_cm",
			"fitness_class",
		},
		NumericColumns: []string{
			"age",
			"height_cm",
			"weight_kg",
			"body_fat_pct",
			"diastolic",
			"systolic",
			"grip_force",
			"sit_and_bend_forward_cm",
			"situps_count",
			"broad_jump_cm",
		},
		NumericLiteral: IntegerLiteral,
		Notes: []string{
			"gender is 'F' or 'M'.",
			"fitness_class is one of A, B, C, D (A is best, D is worst).",
		},
	}
}
