package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/logger"
	"github.com/12222526/Rag-Resume/internal/storage"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
)

// 唯一需要外部服务的子命令：订阅领域事件交换机并打印收到的事件
func newEventsCmd() *cobra.Command {
	var (
		configPath string
		queue      string
		routingKey string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "订阅 RabbitMQ 上的领域事件并打印",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			mq, err := storage.NewRabbitMQ(&cfg.RabbitMQ, logger.Std("[resumectl] "))
			if err != nil {
				return err
			}
			defer mq.Close()

			exchange := cfg.RabbitMQ.EventsExchange
			if err := mq.EnsureExchange(exchange, "topic", true); err != nil {
				return err
			}
			if err := mq.EnsureQueue(queue, false); err != nil {
				return err
			}
			if err := mq.BindQueue(queue, exchange, routingKey); err != nil {
				return err
			}

			stop, err := mq.StartConsumer(queue, 10, func(d amqp.Delivery) bool {
				cmd.Printf("%s %s %s\n", d.RoutingKey, d.MessageId, string(d.Body))
				return true
			})
			if err != nil {
				return fmt.Errorf("订阅事件失败: %w", err)
			}
			cmd.Printf("正在监听 %s (%s)，Ctrl+C 退出\n", exchange, routingKey)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case <-cmd.Context().Done():
			}
			close(stop)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	cmd.Flags().StringVar(&queue, "queue", "resumectl.events", "临时队列名")
	cmd.Flags().StringVar(&routingKey, "routing-key", "#", "绑定的路由键")
	return cmd
}
