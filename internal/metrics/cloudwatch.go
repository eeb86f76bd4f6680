package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"arbflow/logger"
)

// CloudWatchPublisher periodically publishes counter deltas as custom
// CloudWatch metrics. Publishing failures are logged and retried on the next
// interval; they never affect the feed.
type CloudWatchPublisher struct {
	client    *cloudwatch.Client
	namespace string
	interval  time.Duration
	log       *logger.Entry
}

// NewCloudWatchPublisher initialises the CloudWatch client using the default
// AWS configuration chain, optionally pinned to a region.
func NewCloudWatchPublisher(ctx context.Context, region, namespace string, interval time.Duration) (*CloudWatchPublisher, error) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	if namespace == "" {
		namespace = "Arbflow"
	}
	if interval <= 0 {
		interval = time.Minute
	}

	log.WithFields(logger.Fields{
		"region":    cfg.Region,
		"namespace": namespace,
	}).Info("initialized CloudWatch client")

	return &CloudWatchPublisher{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		interval:  interval,
		log:       log,
	}, nil
}

// Start launches the publishing loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (p *CloudWatchPublisher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		prev := Read()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				delta := Delta(prev)
				prev = Read()
				if err := p.publish(ctx, delta); err != nil {
					p.log.WithError(err).Warn("failed to publish metrics")
				}
			}
		}
	}()
}

func (p *CloudWatchPublisher) publish(ctx context.Context, delta Snapshot) error {
	now := time.Now()
	datum := func(name string, value int64) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Timestamp:  aws.Time(now),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(value)),
		}
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{
			datum("MessagesParsed", delta.MessagesParsed),
			datum("ParseErrors", delta.ParseErrors),
			datum("Reconnects", delta.Reconnects),
			datum("BroadcastDrops", delta.BroadcastDrops),
			datum("PricesSwept", delta.PricesSwept),
		},
	})
	return err
}
