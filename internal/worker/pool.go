package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"dashbot-backend/internal/models"
	"dashbot-backend/internal/repository"
)

const TitleQueue = "queue:title-generation"

// Titler generates a short conversation title from its first message.
type Titler interface {
	Title(ctx context.Context, text string) (string, error)
}

// Pool consumes title-generation jobs queued when a session is created lazily
// on first send. Failures are logged and skipped; the session keeps its draft
// title.
type Pool struct {
	redis       *redis.Client
	titler      Titler
	sessionRepo *repository.ChatSessionRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, titler Titler, sessionRepo *repository.ChatSessionRepo, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		titler:      titler,
		sessionRepo: sessionRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d title worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

// Enqueue queues a title job. Best-effort: a queue failure only means the
// session keeps its draft title.
func (p *Pool) Enqueue(ctx context.Context, job models.TitleJob) {
	data, _ := json.Marshal(job)
	if err := p.redis.LPush(ctx, TitleQueue, string(data)).Err(); err != nil {
		log.Printf("failed to enqueue title job for session %s: %v", job.SessionID, err)
	}
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Title worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, TitleQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.TitleJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Title worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("title_lock:%s", job.SessionID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		p.process(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.TitleJob) {
	title, err := p.titler.Title(ctx, job.Prompt)
	if err != nil {
		log.Printf("title generation failed for session %s: %v", job.SessionID, err)
		return
	}

	if _, err := p.sessionRepo.Update(ctx, job.SessionID, &title, nil); err != nil {
		log.Printf("failed to store title for session %s: %v", job.SessionID, err)
		return
	}

	// Let the dashboard refresh its session list.
	event := models.WSMessage{
		Type:    "session_updated",
		Payload: models.SessionUpdated{SessionID: job.SessionID, Title: title},
	}
	data, _ := json.Marshal(event)
	p.redis.Publish(ctx, "chat_updates:"+job.ClientID, string(data))
}
