package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"orderId":"011012410280001"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducer(mock)
	require.NoError(t, p.SendMessage("canteen.order.events", "011012410280001", `{"orderId":"011012410280001"}`))
	require.NoError(t, p.Close())
}

func TestSendMessageFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducer(mock)
	err := p.SendMessage("canteen.order.events", "k", "v")
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestCloseNilProducer(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.Close())
}
