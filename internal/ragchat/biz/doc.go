// Package biz 提供 RAG 对话服务的业务逻辑层。
//
// 组件按依赖顺序排列：
//   - Chunker: 按固定字符数切分文本
//   - Embedder: 调用嵌入模型，校验向量维度，可选 Redis 缓存
//   - QueryOptimizer: 将用户消息改写为关键词查询，并清洗模型输出
//   - SessionManager: 管理会话及其对话历史，空闲回收
//   - Orchestrator: 检索、拼装提示词、生成回复并维护历史
//   - Indexer: 分块、嵌入、写入向量库，返回逐块报告
//   - Service: 组合以上组件，供 HTTP 层调用
package biz
