package handlers

import (
	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type InventoryHandler struct {
	Candidates  services.CandidateStore
	Refresher   *services.InventoryRefresher
	TargetCount int
}

func NewInventoryHandler(candidates services.CandidateStore, refresher *services.InventoryRefresher, targetCount int) *InventoryHandler {
	return &InventoryHandler{
		Candidates:  candidates,
		Refresher:   refresher,
		TargetCount: targetCount,
	}
}

// GetInventory reports the current candidate count and refresher state.
func (h *InventoryHandler) GetInventory(c *fiber.Ctx) error {
	candidates, err := h.Candidates.ScanAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	withEmbedding := 0
	for i := range candidates {
		if candidates[i].HasEmbedding() {
			withEmbedding++
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"candidate_count": len(candidates),
			"with_embedding":  withEmbedding,
			"target_count":    h.TargetCount,
			"refresh_running": h.Refresher.InFlight(),
			"metrics":         h.Refresher.Metrics().Snapshot(),
		},
	})
}

// TriggerRefresh starts a background inventory refresh. Returns 409 when one
// is already running.
func (h *InventoryHandler) TriggerRefresh(c *fiber.Ctx) error {
	logrus.Info("Manual inventory refresh triggered via admin endpoint")

	if !h.Refresher.RefreshAsync(h.TargetCount) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Inventory refresh already in flight",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Inventory refresh started",
	})
}
