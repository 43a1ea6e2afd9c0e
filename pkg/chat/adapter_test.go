package chat_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/testutil"
)

var _ = Describe("Store adapter", func() {
	var (
		store *chat.Store
		fake  *testutil.FakeAdapter
	)

	BeforeEach(func() {
		store = chat.NewStore(chat.Options{UserID: "tester"})
		fake = testutil.NewFakeAdapter()
	})

	Describe("SetAdapter", func() {
		It("should select and hydrate the first listed thread", func() {
			fake.Seed(chat.ThreadMeta{ID: "t1", Title: "First"},
				chat.NewUserMessage("stored question"),
				chat.NewAssistantMessage("stored answer"))
			fake.Seed(chat.ThreadMeta{ID: "t2", Title: "Second"})

			store.SetAdapter(fake)

			Expect(store.CurrentThreadID()).To(Equal("t1"))
			Expect(store.GetAllThreadIDs()).To(ConsistOf("t1", "t2"))
			msgs := store.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("stored question"))
		})

		It("should create and persist a default thread when the backend is empty", func() {
			store.SetAdapter(fake)

			Expect(store.CurrentThreadID()).To(Equal(chat.DefaultThreadID))
			Expect(fake.CallCount("CreateThread")).To(Equal(1))
			meta, ok := fake.StoredMeta(chat.DefaultThreadID)
			Expect(ok).To(BeTrue())
			Expect(meta.Title).To(Equal("New Conversation"))
		})

		It("should stay usable when listing fails", func() {
			fake.SetError("ListThreads", errors.New("backend down"))

			store.SetAdapter(fake)

			Expect(store.CurrentThreadID()).To(Equal(chat.DefaultThreadID))
			store.AddMessage(chat.NewUserMessage("still works"), false, "")
			Expect(store.Messages()).To(HaveLen(1))
		})

		It("should drop local state when the adapter changes", func() {
			store.AddMessage(chat.NewUserMessage("local only"), false, "")
			fake.Seed(chat.ThreadMeta{ID: "remote"}, chat.NewUserMessage("remote"))

			store.SetAdapter(fake)

			Expect(store.GetAllThreadIDs()).To(Equal([]string{"remote"}))
		})

		It("should reset to an in-memory default thread for a nil adapter", func() {
			fake.Seed(chat.ThreadMeta{ID: "t1"})
			store.SetAdapter(fake)

			store.SetAdapter(nil)

			Expect(store.CurrentThreadID()).To(Equal(chat.DefaultThreadID))
			Expect(store.GetAllThreadIDs()).To(Equal([]string{chat.DefaultThreadID}))
		})
	})

	Describe("SwitchThread hydration", func() {
		It("should load messages on first visit only", func() {
			fake.Seed(chat.ThreadMeta{ID: "t1"}, chat.NewUserMessage("from storage"))
			fake.Seed(chat.ThreadMeta{ID: "t2"})
			store.SetAdapter(fake)
			loadsAfterSet := fake.CallCount("LoadMessages")

			store.SwitchThread("t2")
			store.SwitchThread("t1")
			Expect(store.Messages()).To(HaveLen(1))
			firstVisit := fake.CallCount("LoadMessages")

			store.SwitchThread("t2")
			store.SwitchThread("t1")

			Expect(firstVisit).To(BeNumerically(">", loadsAfterSet))
			Expect(fake.CallCount("LoadMessages")).To(Equal(firstVisit))
		})

		It("should not overwrite locally added messages", func() {
			store.SetAdapter(fake)
			store.SwitchThread("scratch")
			store.AddMessage(chat.NewUserMessage("local"), false, "scratch")

			store.SwitchThread(chat.DefaultThreadID)
			store.SwitchThread("scratch")

			Expect(store.Messages()).To(HaveLen(1))
			Expect(store.Messages()[0].Content).To(Equal("local"))
		})
	})

	Describe("write-through persistence", func() {
		BeforeEach(func() {
			store.SetAdapter(fake)
		})

		It("should use the incremental tier when available", func() {
			store.AddMessage(chat.NewUserMessage("hello"), true, "")

			Expect(fake.CallCount("PersistMessage")).To(Equal(1))
			Expect(fake.CallCount("PersistMessages")).To(BeZero())
			Expect(fake.StoredMessages(chat.DefaultThreadID)).To(HaveLen(1))
		})

		It("should refresh the thread meta on writes", func() {
			store.AddMessage(chat.NewUserMessage("hello"), true, "")

			Expect(fake.CallCount("UpdateThread")).To(Equal(1))
			meta, ok := fake.StoredMeta(chat.DefaultThreadID)
			Expect(ok).To(BeTrue())
			Expect(meta.LastMessage).To(Equal("hello"))
		})

		It("should persist stream extensions as updates", func() {
			store.AppendToLatest("Hel", true, "")
			store.AppendToLatest("lo", true, "")

			Expect(fake.CallCount("PersistMessage")).To(Equal(1))
			Expect(fake.CallCount("UpdateMessage")).To(Equal(1))
			stored := fake.StoredMessages(chat.DefaultThreadID)
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Content).To(Equal("Hello"))
		})

		It("should delete through the incremental tier", func() {
			msg := store.AddMessage(chat.NewUserMessage("bye"), true, "")

			store.DeleteMessage(msg.ID, true, "")

			Expect(fake.CallCount("DeleteMessage")).To(Equal(1))
			Expect(fake.StoredMessages(chat.DefaultThreadID)).To(BeEmpty())
		})

		It("should rewrite the whole thread on clear", func() {
			store.AddMessage(chat.NewUserMessage("one"), true, "")

			store.ClearMessages(true, "")

			Expect(fake.CallCount("PersistMessages")).To(Equal(1))
			Expect(fake.StoredMessages(chat.DefaultThreadID)).To(BeEmpty())
		})

		It("should skip the adapter when persist is false", func() {
			store.AddMessage(chat.NewUserMessage("memory only"), false, "")

			Expect(fake.CallCount("PersistMessage")).To(BeZero())
			Expect(fake.CallCount("PersistMessages")).To(BeZero())
		})

		It("should flush accumulated chunks with PersistThread", func() {
			store.AppendToLatest("Hel", false, "")
			store.AppendToLatest("lo", false, "")

			store.PersistThread("")

			Expect(fake.CallCount("PersistMessages")).To(Equal(1))
			Expect(fake.CallCount("UpdateThread")).To(Equal(1))
			stored := fake.StoredMessages(chat.DefaultThreadID)
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Content).To(Equal("Hello"))
		})

		It("should keep the in-memory write when persistence fails", func() {
			fake.SetError("PersistMessage", errors.New("disk full"))

			msg := store.AddMessage(chat.NewUserMessage("kept"), true, "")

			Expect(store.Messages()).To(HaveLen(1))
			Expect(store.Messages()[0].ID).To(Equal(msg.ID))
		})
	})

	Describe("batch-only backends", func() {
		BeforeEach(func() {
			store.SetAdapter(testutil.NewBatchAdapter(fake))
		})

		It("should fall back to full rewrites", func() {
			store.AddMessage(chat.NewUserMessage("hello"), true, "")

			Expect(fake.CallCount("PersistMessage")).To(BeZero())
			Expect(fake.CallCount("PersistMessages")).To(Equal(1))
			Expect(fake.StoredMessages(chat.DefaultThreadID)).To(HaveLen(1))
		})

		It("should not attempt thread meta writes", func() {
			store.AddMessage(chat.NewUserMessage("hello"), true, "")

			Expect(fake.CallCount("UpdateThread")).To(BeZero())
		})
	})
})
