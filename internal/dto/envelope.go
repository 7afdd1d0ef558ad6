package dto

const StatusOK = "ok"

type StatusResponse struct {
	Status string `json:"status"`
}

type DataResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
	Meta   any    `json:"meta,omitempty"`
}

type ListMeta struct {
	Total int64 `json:"total"`
}

type ErrorResponse struct {
	Errors string `json:"errors"`
}
