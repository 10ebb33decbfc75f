package domain

// Plan is the subset of a subscription plan needed to provision trial accounts.
type Plan struct {
	ID             int64
	GroupID        *int64
	TransferEnable int64 // GiB
	SpeedLimit     *int64
}

// BytesPerGiB converts plan transfer quotas into bytes.
const BytesPerGiB int64 = 1 << 30
