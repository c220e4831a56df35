package game

// EffectResult reports the outcome of a single effect. Processing never
// panics through the engine boundary; collaborator errors surface here as
// Success=false with the message in Error.
type EffectResult struct {
	Success    bool
	EffectType EffectType
	Error      string
	// ResultingEffects are follow-up effects the batch executor enqueues
	// after a successful dispatch.
	ResultingEffects []Effect
	// Data carries operation-specific extras, e.g. drawn card ids or a
	// choice selection.
	Data map[string]any
}

func successResult(t EffectType) EffectResult {
	return EffectResult{Success: true, EffectType: t}
}

func failureResult(t EffectType, msg string) EffectResult {
	return EffectResult{Success: false, EffectType: t, Error: msg}
}

// WithData returns the result with one data entry attached.
func (r EffectResult) WithData(key string, value any) EffectResult {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// WithResulting returns the result with follow-up effects appended.
func (r EffectResult) WithResulting(effects ...Effect) EffectResult {
	r.ResultingEffects = append(r.ResultingEffects, effects...)
	return r
}

// BatchEffectResult aggregates the outcomes of one batch run.
// SuccessfulEffects+FailedEffects always equals TotalEffects, and Success is
// true only when nothing failed.
type BatchEffectResult struct {
	Success           bool
	TotalEffects      int
	SuccessfulEffects int
	FailedEffects     int
	Results           []EffectResult
	Errors            []string
}

// add folds a single result into the aggregate.
func (b *BatchEffectResult) add(res EffectResult) {
	b.TotalEffects++
	b.Results = append(b.Results, res)
	if res.Success {
		b.SuccessfulEffects++
	} else {
		b.FailedEffects++
		if res.Error != "" {
			b.Errors = append(b.Errors, res.Error)
		}
	}
}

// merge folds another batch into the aggregate.
func (b *BatchEffectResult) merge(other BatchEffectResult) {
	b.TotalEffects += other.TotalEffects
	b.SuccessfulEffects += other.SuccessfulEffects
	b.FailedEffects += other.FailedEffects
	b.Results = append(b.Results, other.Results...)
	b.Errors = append(b.Errors, other.Errors...)
}

// finalize computes the aggregate success flag and returns the batch.
func (b *BatchEffectResult) finalize() BatchEffectResult {
	b.Success = b.FailedEffects == 0
	return *b
}
