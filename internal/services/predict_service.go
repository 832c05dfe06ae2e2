package services

import (
	"math"

	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/models"
)

// PredictService scores ad-hoc feature rows against the live estimator.
type PredictService struct {
	logger    *logging.Logger
	estimator *EstimatorRef
}

// NewPredictService creates a predict service.
func NewPredictService(logger *logging.Logger, estimator *EstimatorRef) *PredictService {
	return &PredictService{logger: logger, estimator: estimator}
}

// Predict validates the request and returns the rounded, non-negative
// booking count estimate.
func (s *PredictService) Predict(req *models.PredictRequest) (*models.PredictResponse, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "invalid prediction request",
			map[string]interface{}{"problems": problems})
	}

	forest := s.estimator.Current()
	if forest == nil {
		return nil, NewServiceError(CodeModelUnavailable, "no trained model available yet")
	}

	value := int(math.Round(forest.Predict(req.Features())))
	return &models.PredictResponse{PredictedBookingCount: value}, nil
}
