package delivery

import (
	"math"
	"time"
)

// BackoffBase is the unit multiplied by 2^attemptCount to compute the
// delay before the next retry.
const BackoffBase = 5 * time.Minute

/* Backoff computes the retry delay after a failed attempt. attemptCount
 * is the count AFTER the failed attempt was recorded, so the sequence
 * for a repeatedly failing delivery is 10m, 20m, 40m, 80m.
 */
func Backoff(attemptCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(attemptCount))) * BackoffBase
}

/* ApplyOutcome is the retry scheduler: given a delivery and the outcome
 * of one attempt, it returns the next persisted state. Pure function;
 * the caller persists the returned value.
 *
 * The attempt itself always counts: AttemptCount is incremented and
 * LastAttemptAt stamped regardless of outcome, and the captured
 * response fields are carried on every branch.
 */
func ApplyOutcome(d Delivery, o Outcome, now time.Time) Delivery {
	d.AttemptCount++
	d.LastAttemptAt = now
	d.ResponseStatusCode = o.StatusCode
	d.ResponseBody = o.ResponseBody
	d.ErrorMessage = o.ErrorMessage
	d.UpdatedAt = now

	if o.Success {
		d.Status = Delivered
		d.DeliveredAt = now
		d.NextRetryAt = time.Time{}
		return d
	}

	if d.AttemptCount >= d.MaxAttempts {
		// Dead-letter: exhausted attempts, never swept again
		d.Status = FailedPermanent
		d.NextRetryAt = time.Time{}
		return d
	}

	d.Status = Failed
	d.NextRetryAt = now.Add(Backoff(d.AttemptCount))
	return d
}
