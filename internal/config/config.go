package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	MySQL   MySQLConfig    `mapstructure:"mysql"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Kafka   KafkaConfig    `mapstructure:"kafka"`
	Credit  CreditConfig   `mapstructure:"credit"`
	Log     LogConfig      `mapstructure:"log"`
	Rewards []RewardConfig `mapstructure:"rewards"`
}

type LogConfig struct {
	Dir string `mapstructure:"dir"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditSnapshot string `mapstructure:"credit_snapshot"`
}

// CreditConfig 信用账单引擎参数
//
// 【重要】引擎只读这份配置，不读任何全局变量，
// 测试时可以构造不同参数验证各计分分支。
type CreditConfig struct {
	BillingCycleDays                int     `mapstructure:"billing_cycle_days"`
	MinPaymentAmt                   float64 `mapstructure:"min_payment_amt"`
	NoPaymentFee                    float64 `mapstructure:"no_payment_fee"`
	NoPaymentPenalty                int     `mapstructure:"no_payment_penalty"`
	OnTimePaymentReward             int     `mapstructure:"on_time_payment_reward"`
	HighUtilizationPenalty          int     `mapstructure:"high_utilization_penalty"`
	LowUtilizationReward            int     `mapstructure:"low_utilization_reward"`
	OverLimitPenalty                int     `mapstructure:"over_limit_penalty"`
	NoUtilizationPenalty            int     `mapstructure:"no_utilization_penalty"`
	UtilizationRewardExponent       int     `mapstructure:"utilization_reward_exponent"`
	MaxPoints                       int     `mapstructure:"max_points"`
	MinScore                        int     `mapstructure:"min_score"`
	MaxScore                        int     `mapstructure:"max_score"`
	SavingsRewardRate               float64 `mapstructure:"savings_reward_rate"`
	MinDaysOutstandingForFullPoints int     `mapstructure:"min_days_outstanding_for_full_points"`
	OutboxMaxRetryCount             int     `mapstructure:"outbox_max_retry_count"`
}

// RewardConfig 可兑换奖励项
type RewardConfig struct {
	Name   string  `mapstructure:"name"`
	Points int     `mapstructure:"points"`
	Type   string  `mapstructure:"type"` // 目前仅 cash
	Amount float64 `mapstructure:"amount"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setCreditDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}

// setCreditDefaults 信用参数缺省值（与产品基准配置一致）
func setCreditDefaults() {
	viper.SetDefault("log.dir", "log")
	viper.SetDefault("credit.billing_cycle_days", 30)
	viper.SetDefault("credit.min_payment_amt", 0.08)
	viper.SetDefault("credit.no_payment_fee", 5.00)
	viper.SetDefault("credit.no_payment_penalty", 20)
	viper.SetDefault("credit.on_time_payment_reward", 20)
	viper.SetDefault("credit.high_utilization_penalty", 10)
	viper.SetDefault("credit.low_utilization_reward", 12)
	viper.SetDefault("credit.over_limit_penalty", 10)
	viper.SetDefault("credit.no_utilization_penalty", 0)
	viper.SetDefault("credit.utilization_reward_exponent", 8)
	viper.SetDefault("credit.max_points", 80)
	viper.SetDefault("credit.min_score", 300)
	viper.SetDefault("credit.max_score", 850)
	viper.SetDefault("credit.savings_reward_rate", 1)
	viper.SetDefault("credit.min_days_outstanding_for_full_points", 5)
	viper.SetDefault("credit.outbox_max_retry_count", 3)
}

// DefaultCreditConfig 产品基准信用参数（批处理入口与测试缺省使用）
func DefaultCreditConfig() *CreditConfig {
	return &CreditConfig{
		BillingCycleDays:                30,
		MinPaymentAmt:                   0.08,
		NoPaymentFee:                    5.00,
		NoPaymentPenalty:                20,
		OnTimePaymentReward:             20,
		HighUtilizationPenalty:          10,
		LowUtilizationReward:            12,
		OverLimitPenalty:                10,
		NoUtilizationPenalty:            0,
		UtilizationRewardExponent:       8,
		MaxPoints:                       80,
		MinScore:                        300,
		MaxScore:                        850,
		SavingsRewardRate:               1,
		MinDaysOutstandingForFullPoints: 5,
		OutboxMaxRetryCount:             3,
	}
}
