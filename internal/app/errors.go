package app

import "fmt"

// Business rejections, distinct from infrastructure failures: the sender gets
// a reply, no state is written, no record is created.
var ErrLearnerNotRegistered = fmt.Errorf("learner is not registered")
var ErrReviewerNotAuthorized = fmt.Errorf("sender is not the configured reviewer")
