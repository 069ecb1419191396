package types

// ListTestimoniesQuery binds GET /api/v1/testimonies
type ListTestimoniesQuery struct {
	Origin string `form:"origin" example:"lausanne"`
	Status string `form:"status" example:"completed"`
	Tag    string `form:"tag" example:"sanidad"`
	Limit  int    `form:"limit" example:"20"`
	Offset int    `form:"offset" example:"0"`
}

// SearchQuery binds GET /api/v1/search
type SearchQuery struct {
	Query  string `form:"q" binding:"required" example:"sanidad de un hijo"`
	Limit  int    `form:"limit" example:"10"`
	Origin string `form:"origin" example:"lausanne"`
}
