package domain

// BatchEnrollmentRequest is the body of POST /api/v1/enrollments/batch.
type BatchEnrollmentRequest struct {
	RegisterClassGroupIDs []int64 `json:"registerClassGroupIds" validate:"omitempty,max=30,dive,gt=0"`
	CancelClassGroupIDs   []int64 `json:"cancelClassGroupIds" validate:"omitempty,max=30,dive,gt=0"`
	StudentID             *int64  `json:"studentId,omitempty" validate:"omitempty,gt=0"`
	SemesterID            *int64  `json:"semesterId,omitempty" validate:"omitempty,gt=0"`
}

// BatchItem is one class group accepted into a batch.
type BatchItem struct {
	ClassGroupID int64 `json:"classGroupId"`
	IsRegistered bool  `json:"isRegistered"`
}

type BatchEnrollmentResponse struct {
	BatchID            string      `json:"batchId"`
	SemesterID         int64       `json:"semesterId"`
	ValidClassGroupIDs []BatchItem `json:"validClassGroupIds"`
}

type BatchStatusResponse struct {
	BatchID string            `json:"batchId"`
	Items   []BatchStatusItem `json:"items"`
}
