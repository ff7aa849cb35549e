package rabbitmq_common

import (
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultReconnectInterval пауза между попытками восстановить соединение
const DefaultReconnectInterval = 10 * time.Second

var ErrManagerClosed = errors.New("connection manager is closed")

// ConnectionManager держит одно соединение с брокером на весь процесс.
// Каналы потребителей и издателей открываются поверх него.
type ConnectionManager struct {
	url               string
	reconnectInterval time.Duration

	mu         sync.RWMutex
	connection *amqp.Connection
	closed     bool
	done       chan struct{}

	Logger Logger
}

var (
	managerInstance *ConnectionManager
	managerErr      error
	once            sync.Once
)

// GetManager возвращает общий для процесса менеджер, создавая его при первом вызове
func GetManager(url string, logger Logger) (*ConnectionManager, error) {
	once.Do(func() {
		managerInstance, managerErr = NewConnectionManager(url, logger)
	})
	return managerInstance, managerErr
}

// NewConnectionManager подключается к брокеру и запускает фоновое переподключение
func NewConnectionManager(url string, logger Logger) (*ConnectionManager, error) {
	if err := (Config{URL: url}).Validate(); err != nil {
		return nil, err
	}
	m := &ConnectionManager{
		url:               url,
		reconnectInterval: DefaultReconnectInterval,
		done:              make(chan struct{}),
		Logger:            orNoop(logger),
	}

	if _, err := m.connect(); err != nil {
		m.Logger.Error(err, "Initial connection failed")
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}

	go m.watch()
	return m, nil
}

func (m *ConnectionManager) connect() (*amqp.Connection, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrManagerClosed
	}
	if m.connection != nil && !m.connection.IsClosed() {
		conn := m.connection
		m.mu.RUnlock()
		return conn, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// пока ждали блокировку, соединение мог поднять другой вызов
	if m.connection != nil && !m.connection.IsClosed() {
		return m.connection, nil
	}

	m.Logger.Debug("ConnectionManager: dialing broker")
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("ConnectionManager: dial: %w", err)
	}
	m.connection = conn
	m.Logger.Info("ConnectionManager: connected")
	return conn, nil
}

// Connection отдает текущее соединение (для NotifyClose)
func (m *ConnectionManager) Connection() (*amqp.Connection, error) {
	return m.connect()
}

// GetChannel открывает новый канал на общем соединении
func (m *ConnectionManager) GetChannel() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := m.connect()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return conn, nil, fmt.Errorf("ConnectionManager: open channel: %w", err)
	}
	return conn, ch, nil
}

// watch ждет закрытия соединения и пытается его восстановить
func (m *ConnectionManager) watch() {
	for {
		m.mu.RLock()
		conn := m.connection
		m.mu.RUnlock()

		var closeCh chan *amqp.Error
		if conn != nil && !conn.IsClosed() {
			closeCh = conn.NotifyClose(make(chan *amqp.Error, 1))
		}

		if closeCh != nil {
			select {
			case <-m.done:
				return
			case amqpErr, ok := <-closeCh:
				if ok && amqpErr != nil {
					m.Logger.Warn("ConnectionManager: connection lost", "reason", amqpErr.Reason, "code", amqpErr.Code)
				}
			}
		}

		select {
		case <-m.done:
			return
		case <-time.After(m.reconnectInterval):
		}

		if _, err := m.connect(); err != nil {
			if errors.Is(err, ErrManagerClosed) {
				return
			}
			m.Logger.Error(err, "ConnectionManager: reconnect failed")
		}
	}
}

// Close останавливает переподключение и закрывает соединение
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)

	if m.connection == nil || m.connection.IsClosed() {
		m.Logger.Debug("ConnectionManager: nothing to close")
		return nil
	}
	if err := m.connection.Close(); err != nil {
		m.Logger.Error(err, "ConnectionManager: failed to close connection")
		return err
	}
	m.Logger.Info("ConnectionManager: connection closed")
	return nil
}
