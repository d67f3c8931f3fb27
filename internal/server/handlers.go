package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"tasklens/internal/analytics"
	"tasklens/internal/cache"
	"tasklens/internal/scope"
)

type service struct {
	engine analytics.Engine
	cache  *cache.Cache
}

// analyticsEnvelope wraps every successful analytics payload. Cached
// routes replay the stored bytes verbatim, so Data stays a raw message
// rather than a typed struct.
type analyticsEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type analyticsOutput struct {
	Body analyticsEnvelope
}

func envelope(payload []byte) *analyticsOutput {
	return &analyticsOutput{Body: analyticsEnvelope{Data: payload}}
}

// respond runs compute behind the cache. Routes with a zero ttl never
// touch the cache, so its counters only reflect cacheable traffic.
func (s *service) respond(route string, sc scope.Scope, ttl time.Duration, params []string, compute func() (any, error)) (*analyticsOutput, error) {
	var key string
	if ttl > 0 {
		key = cache.Key(route, sc.CacheKey(), params...)
		if payload, ok := s.cache.Get(key); ok {
			return envelope(payload), nil
		}
	}
	result, err := compute()
	if err != nil {
		return nil, handleError(err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, handleError(err)
	}
	if ttl > 0 {
		s.cache.Put(key, payload, ttl)
	}
	return envelope(payload), nil
}

func (s *service) scopeFor(ctx context.Context) (scope.Scope, huma.StatusError) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return scope.Scope{}, err
	}
	return scope.Resolve(caller), nil
}

func registerAnalytics(api huma.API, s *service) {
	cacheCfg := s.engine.Config.Cache

	huma.Register(api, huma.Operation{
		OperationID: "analytics-dashboard",
		Method:      http.MethodGet,
		Path:        "/analytics/dashboard",
		Summary:     "Dashboard overview",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		sc, authErr := s.scopeFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return s.respond("dashboard", sc, cacheCfg.DashboardTTL.Std(), nil, func() (any, error) {
			return s.engine.Dashboard(ctx, sc)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-task-completion-trend",
		Method:      http.MethodGet,
		Path:        "/analytics/task-completion-trend",
		Summary:     "Task completion trend",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Days int `query:"days" required:"false" doc:"Window length in days"`
	}) (*analyticsOutput, error) {
		sc, authErr := s.scopeFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		days := s.engine.ClampDays(input.Days)
		return s.respond("task-completion-trend", sc, cacheCfg.TrendTTL.Std(), []string{strconv.Itoa(days)}, func() (any, error) {
			return s.engine.CompletionTrend(ctx, sc, days)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-user-workload",
		Method:      http.MethodGet,
		Path:        "/analytics/user-workload",
		Summary:     "Per-user workload",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		caller, authErr := requireAdmin(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc := scope.Resolve(caller)
		return s.respond("user-workload", sc, cacheCfg.UserWorkloadTTL.Std(), nil, func() (any, error) {
			return s.engine.UserWorkload(ctx)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-issue-resolution-metrics",
		Method:      http.MethodGet,
		Path:        "/analytics/issue-resolution-metrics",
		Summary:     "Issue resolution metrics",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		sc, authErr := s.scopeFor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return s.respond("issue-resolution-metrics", sc, 0, nil, func() (any, error) {
			return s.engine.IssueResolutionMetrics(ctx, sc)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-employees-summary",
		Method:      http.MethodGet,
		Path:        "/analytics/employees-summary",
		Summary:     "Employee summaries",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		caller, authErr := requireAdmin(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc := scope.Resolve(caller)
		return s.respond("employees-summary", sc, 0, nil, func() (any, error) {
			return s.engine.EmployeesSummary(ctx)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-recommendations",
		Method:      http.MethodGet,
		Path:        "/analytics/recommendations",
		Summary:     "Workload recommendations",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		caller, authErr := requireAdmin(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc := scope.Resolve(caller)
		return s.respond("recommendations", sc, 0, nil, func() (any, error) {
			return s.engine.Recommendations(ctx)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-late-tasks",
		Method:      http.MethodGet,
		Path:        "/analytics/late-tasks",
		Summary:     "Overdue and late-completed tasks",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*analyticsOutput, error) {
		caller, authErr := requireAdmin(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc := scope.Resolve(caller)
		return s.respond("late-tasks", sc, 0, nil, func() (any, error) {
			return s.engine.LateTasks(ctx)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "analytics-cache-stats",
		Method:      http.MethodGet,
		Path:        "/analytics/cache-stats",
		Summary:     "Response cache statistics",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Data cache.Stats `json:"data"`
		}
	}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		out := &struct {
			Body struct {
				Data cache.Stats `json:"data"`
			}
		}{}
		out.Body.Data = s.cache.Stats()
		return out, nil
	})
}
