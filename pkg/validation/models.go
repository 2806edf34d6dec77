package validation

// WorkflowConfig is the document form of a workflow, as read from YAML, JSON
// or HCL. Functions are referenced by name and resolved by the loader.
// PRINCIPLES:
// - Single Responsibility: Definition shape only
// - Validation: Tags for field rules, Validate for cross-field rules
type WorkflowConfig struct {
	Name        string          `json:"name" yaml:"name" validate:"required,node_id"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" validate:"max=1000"`
	Entry       string          `json:"entry" yaml:"entry" validate:"required,node_id"`
	Finish      string          `json:"finish" yaml:"finish" validate:"required,node_id"`
	MaxSteps    *int            `json:"max_steps,omitempty" yaml:"max_steps,omitempty" validate:"omitempty,min=0,max=100000"`
	Nodes       []NodeConfig    `json:"nodes" yaml:"nodes" validate:"dive"`
	Branches    []BranchConfig  `json:"branches,omitempty" yaml:"branches,omitempty" validate:"dive"`
	Edges       []EdgeConfig    `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
	Channels    []ChannelConfig `json:"channels,omitempty" yaml:"channels,omitempty" validate:"dive"`
}

// NodeConfig declares a node backed by a named function.
type NodeConfig struct {
	Name         string                 `json:"name" yaml:"name" validate:"required,node_id"`
	Function     string                 `json:"function" yaml:"function" validate:"required,function_name"`
	Config       map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	Retry        *RetryConfig           `json:"retry,omitempty" yaml:"retry,omitempty"`
	Cache        *CacheConfig           `json:"cache,omitempty" yaml:"cache,omitempty"`
	TimeoutMs    int                    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" validate:"min=0"`
	MaxRetries   int                    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"min=0,max=100"`
	Tags         []string               `json:"tags,omitempty" yaml:"tags,omitempty" validate:"dive,required"`
	InputChannel string                 `json:"input_channel,omitempty" yaml:"input_channel,omitempty" validate:"omitempty,channel_name"`
}

// BranchConfig declares a conditional router. Ends maps labels to targets.
type BranchConfig struct {
	Name         string                 `json:"name" yaml:"name" validate:"required,node_id"`
	Function     string                 `json:"function" yaml:"function" validate:"required,function_name"`
	Config       map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	Ends         map[string]string      `json:"ends" yaml:"ends" validate:"required,min=1,dive,keys,required,endkeys,node_id"`
	Retry        *RetryConfig           `json:"retry,omitempty" yaml:"retry,omitempty"`
	TimeoutMs    int                    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" validate:"min=0"`
	InputChannel string                 `json:"input_channel,omitempty" yaml:"input_channel,omitempty" validate:"omitempty,channel_name"`
}

// EdgeConfig is a static edge.
type EdgeConfig struct {
	From string `json:"from" yaml:"from" validate:"required,node_id"`
	To   string `json:"to" yaml:"to" validate:"required,node_id"`
}

// ChannelConfig declares a named channel and its update policy.
type ChannelConfig struct {
	Name    string      `json:"name" yaml:"name" validate:"required,channel_name"`
	Policy  string      `json:"policy,omitempty" yaml:"policy,omitempty" validate:"omitempty,oneof=last_value topic ephemeral"`
	Initial interface{} `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	Kind       string  `json:"kind" yaml:"kind" validate:"required,oneof=fixed_delay exponential_backoff"`
	DelayMs    int     `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty" validate:"min=0,max=3600000"`
	MaxDelayMs int     `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"min=0,max=3600000"`
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty" validate:"omitempty,min=1,max=10"`
	MaxRetries int     `json:"max_retries" yaml:"max_retries" validate:"min=0,max=100"`
}

// CacheConfig represents node result caching
type CacheConfig struct {
	Kind       string `json:"kind" yaml:"kind" validate:"required,oneof=input_hash time_based"`
	TTLSeconds int    `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty" validate:"min=0"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
}
