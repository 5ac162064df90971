package protocol

import "encoding/json"

// Version of the local admin API served under /admin/v1.
const Version = "1"

// AdminResponse is the body of every /admin/v1 mutation.
type AdminResponse struct {
	OK          bool   `json:"ok"`
	Code        string `json:"code,omitempty"`
	Error       string `json:"error,omitempty"`
	Tick        uint64 `json:"tick,omitempty"`
	StructureID string `json:"structure_id,omitempty"`
	Hostile     *bool  `json:"hostile,omitempty"`
}

func Fail(code string, err error) AdminResponse {
	r := AdminResponse{Code: code}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func DecodeResponse(b []byte) (AdminResponse, error) {
	var r AdminResponse
	err := json.Unmarshal(b, &r)
	return r, err
}
