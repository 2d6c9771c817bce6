package handler

type UploadParams struct {
	Format string `validate:"required,max=16,alphanum"` // target format token
}

type FormatsResponse struct {
	Categories map[string][]string `json:"categories"`
}
