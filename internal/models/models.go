package models

// All returns every model managed by migrations, in dependency order
func All() []interface{} {
	return []interface{}{
		&SummaryPrompt{},
		&Testimony{},
		&TestimonyChunk{},
		&TestimonyEmbedding{},
		&Job{},
	}
}
