package statusapi

type StartJobPayload struct {
	Type     string `json:"type" validate:"required,oneof=scan scrape download generate"`
	Platform string `json:"platform" validate:"required"`
}
