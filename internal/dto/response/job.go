package response

type SweepResponse struct {
	Processed int  `json:"processed"`
	Expired   int  `json:"expired"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	LockBusy  bool `json:"lock_busy"`
}
