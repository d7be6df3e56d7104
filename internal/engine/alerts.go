package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sigepol/risk-engine/internal/store"
)

// Alert categories and priorities, matching the panel's wire values.
var (
	CategoryExpirations = "VENCIMIENTOS"
	CategoryCollections = "COBRANZAS"
	CategoryImports     = "IMPORTACIONES"
	CategoryProduction  = "PRODUCCION"
	CategorySystem      = "SISTEMA"
)

var (
	PriorityLow      = "BAJA"
	PriorityMedium   = "MEDIA"
	PriorityHigh     = "ALTA"
	PriorityCritical = "CRITICA"
)

// resolutionDeadlines maps a priority to the number of days the panel allows
// before the alert is flagged as past its limit.
var resolutionDeadlines = map[string]int{
	PriorityCritical: 1,
	PriorityHigh:     3,
	PriorityMedium:   7,
	PriorityLow:      7,
}

// policyRule inspects one policy snapshot and produces at most one candidate
// alert. Rules are evaluated in order; each owns a stable id that goes into
// the dedup key, so a condition that recurs after resolution creates a fresh
// alert while an open one blocks duplicates.
type policyRule struct {
	id       string
	evaluate func(s *policySnapshot) *store.Alert
}

// policySnapshot is the per-policy state a rule evaluates against.
type policySnapshot struct {
	policy      *store.Policy
	collections []store.Collection
	now         time.Time
}

var alertRules = []policyRule{
	{id: "policy_expiring", evaluate: rulePolicyExpiring},
	{id: "policy_expired", evaluate: rulePolicyExpired},
	{id: "collection_overdue", evaluate: ruleCollectionOverdue},
	{id: "high_mora", evaluate: ruleHighMora},
}

// rulePolicyExpiring flags active policies within 30 days of expiration.
func rulePolicyExpiring(s *policySnapshot) *store.Alert {
	if s.policy.Status != store.PolicyStatusActive {
		return nil
	}
	daysLeft := int(dateOf(s.policy.ExpirationDate).Sub(dateOf(s.now)).Hours() / 24)
	if daysLeft <= 0 || daysLeft > 30 {
		return nil
	}
	priority := PriorityMedium
	if daysLeft <= 5 {
		priority = PriorityHigh
	}
	return &store.Alert{
		Category: CategoryExpirations,
		Priority: priority,
		Title:    fmt.Sprintf("Póliza %s próxima a vencer", s.policy.Number),
		Message:  fmt.Sprintf("La póliza %s vence en %d días (%s)", s.policy.Number, daysLeft, s.policy.ExpirationDate.Format("02/01/2006")),
	}
}

// rulePolicyExpired flags policies the import pipeline still marks VIGENTE
// even though the expiration date has passed.
func rulePolicyExpired(s *policySnapshot) *store.Alert {
	if s.policy.Status != store.PolicyStatusActive {
		return nil
	}
	if !dateOf(s.now).After(dateOf(s.policy.ExpirationDate)) {
		return nil
	}
	return &store.Alert{
		Category: CategoryExpirations,
		Priority: PriorityCritical,
		Title:    fmt.Sprintf("Póliza %s vencida sin renovar", s.policy.Number),
		Message:  fmt.Sprintf("La póliza %s venció el %s y sigue VIGENTE en el sistema", s.policy.Number, s.policy.ExpirationDate.Format("02/01/2006")),
	}
}

// ruleCollectionOverdue flags policies with at least one overdue collection.
// Priority escalates when the oldest overdue obligation passes 30 days.
func ruleCollectionOverdue(s *policySnapshot) *store.Alert {
	overdue := 0
	maxDays := 0
	for i := range s.collections {
		if IsOverdue(&s.collections[i], s.now) {
			overdue++
			if d := DaysOverdue(&s.collections[i], s.now); d > maxDays {
				maxDays = d
			}
		}
	}
	if overdue == 0 {
		return nil
	}
	priority := PriorityMedium
	if maxDays > 30 {
		priority = PriorityHigh
	}
	return &store.Alert{
		Category: CategoryCollections,
		Priority: priority,
		Title:    fmt.Sprintf("Cobranzas vencidas en póliza %s", s.policy.Number),
		Message:  fmt.Sprintf("La póliza %s tiene %d cobranza(s) vencida(s), la más antigua con %d días de atraso", s.policy.Number, overdue, maxDays),
	}
}

// ruleHighMora flags policies whose mora rate crosses the critical threshold
// used by the risk classifier.
func ruleHighMora(s *policySnapshot) *store.Alert {
	moraRate := MoraRate(s.collections, s.now)
	if moraRate <= 0.5 {
		return nil
	}
	return &store.Alert{
		Category: CategoryCollections,
		Priority: PriorityCritical,
		Title:    fmt.Sprintf("Mora crítica en póliza %s", s.policy.Number),
		Message:  fmt.Sprintf("La póliza %s tiene una tasa de mora de %.0f%%", s.policy.Number, moraRate*100),
	}
}

// DedupKey derives the stable identity of an alert condition. Alerts with the
// same key cannot coexist while one is still open.
func DedupKey(category string, policyID int64, ruleID string) string {
	return fmt.Sprintf("%s:%d:%s", category, policyID, ruleID)
}

// evaluatePolicyRules runs the full rule set against one policy snapshot,
// inserting the candidates that survive deduplication. Returns the alerts
// actually created. A concurrent evaluation pass inserting the same key is
// absorbed by the store's unique constraint, not treated as a failure.
func (e *Engine) evaluatePolicyRules(ctx context.Context, s *policySnapshot) ([]store.Alert, error) {
	type candidate struct {
		alert  *store.Alert
		ruleID string
	}

	candidates := []candidate{}
	keys := []string{}
	for _, rule := range alertRules {
		alert := rule.evaluate(s)
		if alert == nil {
			continue
		}
		alert.Status = store.AlertStatusPending
		alert.PolicyID = &s.policy.ID
		alert.ClientID = &s.policy.ClientID
		alert.RuleID = rule.id
		alert.DedupKey = DedupKey(alert.Category, s.policy.ID, rule.id)
		limit := s.now.AddDate(0, 0, resolutionDeadlines[alert.Priority])
		alert.LimitDate = &limit
		candidates = append(candidates, candidate{alert: alert, ruleID: rule.id})
		keys = append(keys, alert.DedupKey)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	open, err := e.storage.Alert.ListOpenByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	openKeys := make(map[string]struct{}, len(open))
	for _, a := range open {
		openKeys[a.DedupKey] = struct{}{}
	}

	created := []store.Alert{}
	for _, c := range candidates {
		if _, exists := openKeys[c.alert.DedupKey]; exists {
			continue
		}
		if err := e.storage.Alert.Insert(ctx, c.alert); err != nil {
			if err == store.ErrDuplicateKey {
				continue
			}
			return created, err
		}
		created = append(created, *c.alert)
	}
	return created, nil
}

// MarkAlertRead moves a PENDIENTE alert to LEIDA, stamping read_at.
// Re-marking an already-LEIDA alert is a no-op, not an error.
func (e *Engine) MarkAlertRead(ctx context.Context, alertID int64) (*store.Alert, error) {
	alert, err := e.storage.Alert.Get(ctx, alertID)
	if err != nil {
		return nil, mapStoreErr(err, "alert", alertID)
	}

	switch alert.Status {
	case store.AlertStatusRead:
		return alert, nil
	case store.AlertStatusPending:
	default:
		return nil, &InvalidStateError{
			Entity:     "alert",
			ID:         alertID,
			Status:     alert.Status,
			Transition: "mark read",
		}
	}

	now := e.clock.Now()
	expected := alert.Status
	alert.Status = store.AlertStatusRead
	alert.ReadAt = &now

	if err := e.storage.Alert.Update(ctx, alert, expected); err != nil {
		return nil, mapStoreErr(err, "alert", alertID)
	}
	return alert, nil
}

// ResolveAlert moves a PENDIENTE or LEIDA alert to RESUELTA, stamping
// resolved_at. RESUELTA is terminal.
func (e *Engine) ResolveAlert(ctx context.Context, alertID int64) (*store.Alert, error) {
	return e.closeAlert(ctx, alertID, store.AlertStatusResolved, "resolve")
}

// DiscardAlert moves a PENDIENTE or LEIDA alert to DESCARTADA. The UI asks
// users to read before discarding but the engine does not enforce that
// ordering. DESCARTADA is terminal.
func (e *Engine) DiscardAlert(ctx context.Context, alertID int64) (*store.Alert, error) {
	return e.closeAlert(ctx, alertID, store.AlertStatusDiscarded, "discard")
}

func (e *Engine) closeAlert(ctx context.Context, alertID int64, target, transition string) (*store.Alert, error) {
	alert, err := e.storage.Alert.Get(ctx, alertID)
	if err != nil {
		return nil, mapStoreErr(err, "alert", alertID)
	}

	if alert.Status != store.AlertStatusPending && alert.Status != store.AlertStatusRead {
		return nil, &InvalidStateError{
			Entity:     "alert",
			ID:         alertID,
			Status:     alert.Status,
			Transition: transition,
		}
	}

	expected := alert.Status
	alert.Status = target
	if target == store.AlertStatusResolved {
		now := e.clock.Now()
		alert.ResolvedAt = &now
	}

	if err := e.storage.Alert.Update(ctx, alert, expected); err != nil {
		return nil, mapStoreErr(err, "alert", alertID)
	}
	return alert, nil
}
