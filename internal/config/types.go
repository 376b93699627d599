package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// 执行模式。
const (
	ModeSimulation = "simulation"
	ModeBroker     = "broker"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Market    MarketConfig    `mapstructure:"market"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// TradingDate 指定交易日（YYYY-MM-DD 或 RFC3339），为空时使用当前时间。
	TradingDate string `mapstructure:"trading_date"`
	// DecisionFile 指定外部决策 JSON 文件路径；设置后不再调用大模型。
	DecisionFile string `mapstructure:"decision_file"`
}

// MarketConfig 描述可交易标的与行情数据位置。
type MarketConfig struct {
	Symbols  []string `mapstructure:"symbols"`
	DataPath string   `mapstructure:"data_path"`
	// RefreshBars 为 true 时，会话开始前从行情接口刷新日K数据。
	RefreshBars bool `mapstructure:"refresh_bars"`
	// BarsLookbackDays 控制刷新时回溯的天数。
	BarsLookbackDays int `mapstructure:"bars_lookback_days"`
}

// BarsFile 返回日K行情文件路径。
func (m MarketConfig) BarsFile() string {
	return filepath.Join(m.DataPath, "merged.jsonl")
}

// NewsFile 返回新闻数据文件路径。
func (m MarketConfig) NewsFile() string {
	return filepath.Join(m.DataPath, "market_news.json")
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BrokerConfig 描述券商接口连接信息。
type BrokerConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	BaseURL     string `mapstructure:"base_url"`
	DataBaseURL string `mapstructure:"data_base_url"`
	Paper       bool   `mapstructure:"paper"`
}

// ExecutionConfig 控制下单与等待成交行为。
type ExecutionConfig struct {
	Mode         string        `mapstructure:"mode"`
	FillTimeout  time.Duration `mapstructure:"fill_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LedgerConfig 管理仓位账本。
type LedgerConfig struct {
	// Signature 为组合标识，决定账本文件位置。
	Signature   string  `mapstructure:"signature"`
	InitialCash float64 `mapstructure:"initial_cash"`
}

// File 返回指定数据目录下的账本文件路径。
func (l LedgerConfig) File(dataPath string) string {
	return filepath.Join(dataPath, "agent_data", l.Signature, "position", "position.jsonl")
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	// Port 为监控 HTTP 端口，0 表示不启动。
	Port int `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.Market.Symbols) == 0 {
		err = multierr.Append(err, errors.New("market.symbols 至少包含一个标的"))
	}
	if c.Market.DataPath == "" {
		err = multierr.Append(err, errors.New("market.data_path 不能为空"))
	}
	if c.Market.RefreshBars && c.Market.BarsLookbackDays <= 0 {
		err = multierr.Append(err, errors.New("market.bars_lookback_days 必须大于0"))
	}

	mode := strings.ToLower(strings.TrimSpace(c.Execution.Mode))
	if mode != ModeSimulation && mode != ModeBroker {
		err = multierr.Append(err, fmt.Errorf("execution.mode 取值非法: %q (simulation|broker)", c.Execution.Mode))
	}
	if c.Execution.FillTimeout <= 0 {
		err = multierr.Append(err, errors.New("execution.fill_timeout 必须大于0"))
	}
	if c.Execution.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("execution.poll_interval 必须大于0"))
	}
	if c.Execution.PollInterval > 0 && c.Execution.FillTimeout > 0 &&
		c.Execution.PollInterval > c.Execution.FillTimeout {
		err = multierr.Append(err, errors.New("execution.poll_interval 不能大于 fill_timeout"))
	}

	if mode == ModeBroker || c.Market.RefreshBars {
		if c.Broker.APIKey == "" || c.Broker.APISecret == "" {
			err = multierr.Append(err, errors.New("broker.api_key 与 broker.api_secret 不能为空"))
		}
	}

	if c.App.DecisionFile == "" {
		if c.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("openai.api_key 不能为空（或配置 app.decision_file）"))
		}
		if c.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("openai.model 不能为空"))
		}
		if c.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
		}
	}

	if c.Ledger.Signature == "" {
		err = multierr.Append(err, errors.New("ledger.signature 不能为空"))
	}
	if c.Ledger.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("ledger.initial_cash 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[0,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
