package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
)

// ErrReportLocked rejects edits to a report that completed a full
// finalize+sync cycle. Reopen is the only way out of this state.
var ErrReportLocked = errors.New("report is finalized and synchronized")

// ReportService implements the per-order report lifecycle. Every mutation
// locates the report by order_id under the document write lock and replaces
// it in place, or creates a defaulted one when absent. The locked-report
// rule is enforced here, centrally, rather than at each call site.
type ReportService struct {
	repos *repository.Repositories
	sess  *session.Manager
	log   *zap.Logger
}

func NewReportService(repos *repository.Repositories, sess *session.Manager, log *zap.Logger) *ReportService {
	return &ReportService{repos: repos, sess: sess, log: log}
}

// Get returns the report for an order, or repository.ErrNotFound.
func (s *ReportService) Get(orderID int) (*entity.Report, error) {
	return s.repos.Report.FindByOrderID(orderID)
}

// Unsynced lists reports that are finalized but not yet acknowledged.
func (s *ReportService) Unsynced() ([]entity.Report, error) {
	return s.repos.Report.Unsynced()
}

func (s *ReportService) currentUserID() *int {
	if user := s.sess.Current(); user != nil {
		id := user.UserID
		return &id
	}
	return nil
}

// startTime prefers the active-order marker's clock-in time so the report
// reflects when work actually began.
func (s *ReportService) startTime() string {
	if marker, err := s.sess.ActiveOrder(); err == nil && marker != nil {
		return marker.Time
	}
	return nowStamp()
}

func (s *ReportService) newReport(orderID int) func() entity.Report {
	return func() entity.Report {
		return entity.NewReport(orderID, s.currentUserID(), s.startTime())
	}
}

// guarded wraps a mutation with the lock check. Any edit invalidates the
// previous server acknowledgment, so is_synchronized drops to false.
func guarded(fn func(*entity.Report)) func(*entity.Report) error {
	return func(rep *entity.Report) error {
		if rep.Locked() {
			return ErrReportLocked
		}
		fn(rep)
		rep.IsSynchronized = false
		return nil
	}
}

// SaveNotes sets the report's free-form notes.
func (s *ReportService) SaveNotes(orderID int, notes string) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		rep.Notes = &notes
	}))
	return err
}

// SaveSignature stores the customer signature and signer name.
func (s *ReportService) SaveSignature(orderID int, signature, signatureName string) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		rep.CustomerSignature = &signature
		rep.SignatureName = &signatureName
	}))
	return err
}

// DeleteSignature clears the customer signature.
func (s *ReportService) DeleteSignature(orderID int) error {
	_, err := s.repos.Report.Mutate(orderID, nil, guarded(func(rep *entity.Report) {
		rep.CustomerSignature = nil
	}))
	return err
}

// SubmitDeviceReview replaces the review for the device within the report,
// never duplicating a device_id, and stamps end_time/completed_date.
// Submitting a device review does not finalize the order.
func (s *ReportService) SubmitDeviceReview(orderID int, review entity.Review) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		kept := make([]entity.Review, 0, len(rep.Reviews)+1)
		for _, rv := range rep.Reviews {
			if rv.DeviceID != review.DeviceID {
				kept = append(kept, rv)
			}
		}
		rep.Reviews = append(kept, review)

		now := nowStamp()
		rep.EndTime = &now
		rep.CompletedDate = &now
	}))
	return err
}

// MarkDeviceScanned records a successful QR scan against the device's
// review, creating an unchecked review when none exists yet.
func (s *ReportService) MarkDeviceScanned(orderID, deviceID int) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		if rv := rep.FindReview(deviceID); rv != nil {
			rv.IsScanned = true
			return
		}
		rep.Reviews = append(rep.Reviews, entity.Review{
			DeviceID:  deviceID,
			Pests:     []entity.PestReview{},
			Products:  []entity.ProductReview{},
			Answers:   []entity.Answer{},
			IsScanned: true,
		})
	}))
	return err
}

// SaveServiceUsage stores the report-level (service, not device) product and
// pest usage arrays.
func (s *ReportService) SaveServiceUsage(orderID int, products []entity.ProductReview, pests []entity.PestReview) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		if products != nil {
			rep.Products = products
		}
		if pests != nil {
			rep.Pests = pests
		}
	}))
	return err
}

// FinalizeOptions carries forward optional overrides captured on the
// finalize screen. Nil fields keep the report's current values.
type FinalizeOptions struct {
	Notes             *string
	CustomerSignature *string
	SignatureName     *string
}

// Finalize marks the report complete. It never sets is_synchronized; the
// upload is a separate, subsequent step.
func (s *ReportService) Finalize(orderID int, opts FinalizeOptions) error {
	_, err := s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		now := nowStamp()
		rep.UserID = s.currentUserID()
		rep.IsFinalized = true
		rep.FinalizedAt = now
		rep.EndTime = &now
		rep.CompletedDate = &now
		if opts.Notes != nil {
			rep.Notes = opts.Notes
		}
		if opts.CustomerSignature != nil {
			rep.CustomerSignature = opts.CustomerSignature
		}
		if opts.SignatureName != nil {
			rep.SignatureName = opts.SignatureName
		}
	}))
	if err != nil {
		return err
	}
	s.log.Info("report finalized", zap.Int("order_id", orderID))
	return nil
}

// Reopen puts the report back into edit mode. This is the only operation
// permitted on a locked report.
func (s *ReportService) Reopen(orderID int) error {
	_, err := s.repos.Report.Mutate(orderID, nil, func(rep *entity.Report) error {
		rep.IsFinalized = false
		rep.IsSynchronized = false
		rep.EndTime = nil
		rep.ReopenedAt = nowStamp()
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("report reopened", zap.Int("order_id", orderID))
	return nil
}

// MarkSynchronized flips the sync flag after a successful upload.
func (s *ReportService) MarkSynchronized(orderIDs []int) error {
	return s.repos.Report.MarkSynchronized(orderIDs, nowStamp())
}

// AutoReview replicates the source device's completed review (answers,
// pests, products, observations) onto every sibling device in the service
// that shares the source's control point. Existing sibling reviews are
// overwritten (is_scanned preserved); missing ones are created unscanned
// with no image. Devices at other control points are untouched. The report
// is stamped but not finalized. Returns the number of devices covered.
func (s *ReportService) AutoReview(orderID, serviceID, deviceID int) (int, error) {
	orders, err := s.repos.Order.LoadOrders()
	if err != nil {
		return 0, fmt.Errorf("load orders: %w", err)
	}

	var svc *entity.Service
	for i := range orders {
		if orders[i].ID != orderID {
			continue
		}
		for j := range orders[i].Services {
			if orders[i].Services[j].ID == serviceID {
				svc = &orders[i].Services[j]
			}
		}
	}
	if svc == nil {
		return 0, fmt.Errorf("service %d not found in order %d: %w", serviceID, orderID, repository.ErrNotFound)
	}

	source := svc.FindDevice(deviceID)
	if source == nil {
		return 0, fmt.Errorf("device %d not found in service %d: %w", deviceID, serviceID, repository.ErrNotFound)
	}

	targets := make(map[int]bool)
	for _, dev := range svc.Devices {
		if dev.ControlPoint.ID == source.ControlPoint.ID {
			targets[dev.ID] = true
		}
	}

	_, err = s.repos.Report.Mutate(orderID, s.newReport(orderID), guarded(func(rep *entity.Report) {
		var answers []entity.Answer
		var pests []entity.PestReview
		var products []entity.ProductReview
		var observations string
		if src := rep.FindReview(deviceID); src != nil {
			answers = src.Answers
			pests = src.Pests
			products = src.Products
			observations = src.Observations
		}

		covered := make(map[int]bool)
		for i := range rep.Reviews {
			rv := &rep.Reviews[i]
			if !targets[rv.DeviceID] {
				continue
			}
			rv.IsChecked = true
			rv.Answers = cloneAnswers(answers)
			rv.Pests = clonePests(pests)
			rv.Products = cloneProducts(products)
			rv.Observations = observations
			covered[rv.DeviceID] = true
		}
		// Missing reviews are created in the service's device order.
		for _, dev := range svc.Devices {
			if !targets[dev.ID] || covered[dev.ID] {
				continue
			}
			rep.Reviews = append(rep.Reviews, entity.Review{
				DeviceID:     dev.ID,
				Pests:        clonePests(pests),
				Products:     cloneProducts(products),
				Answers:      cloneAnswers(answers),
				Observations: observations,
				IsChecked:    true,
			})
		}

		now := nowStamp()
		rep.EndTime = &now
		rep.CompletedDate = &now
	}))
	if err != nil {
		return 0, err
	}

	s.log.Info("auto-review replicated",
		zap.Int("order_id", orderID),
		zap.Int("source_device", deviceID),
		zap.String("control_point", source.ControlPoint.ID),
		zap.Int("devices", len(targets)))
	return len(targets), nil
}

func cloneAnswers(in []entity.Answer) []entity.Answer {
	out := make([]entity.Answer, len(in))
	copy(out, in)
	return out
}

func clonePests(in []entity.PestReview) []entity.PestReview {
	out := make([]entity.PestReview, len(in))
	copy(out, in)
	return out
}

func cloneProducts(in []entity.ProductReview) []entity.ProductReview {
	out := make([]entity.ProductReview, len(in))
	copy(out, in)
	return out
}
